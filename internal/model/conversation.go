// Package model defines the data structures shared by the client engine.
package model

import (
	"time"
)

// ConversationType distinguishes direct (two-party) threads from groups.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Membership ties a user to a conversation. The User snapshot is
// denormalized: presence events overwrite its Status field in place and
// never trigger a membership reload.
type Membership struct {
	ConversationID int64      `json:"conversation_id"`
	UserID         int64      `json:"user_id"`
	Role           string     `json:"role,omitempty"`
	JoinedAt       *time.Time `json:"joined_at,omitempty"`
	User           *User      `json:"user,omitempty"`
}

// Conversation is a direct or group thread. LastMessageAt drives the
// ordering of the conversation list.
type Conversation struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name,omitempty"`
	Type          ConversationType `json:"type"`
	IsActive      bool             `json:"is_active,omitempty"`
	LastMessageAt time.Time        `json:"last_message_at,omitempty"`
	Members       []Membership     `json:"members,omitempty"`
}

// OtherMember returns the single member of a direct conversation that is
// not selfID. Direct conversations have exactly two members; the other one
// defines the display identity.
func (c *Conversation) OtherMember(selfID int64) *Membership {
	if c.Type != ConversationDirect {
		return nil
	}
	for i := range c.Members {
		if c.Members[i].UserID != selfID {
			return &c.Members[i]
		}
	}
	return nil
}

// DisplayName resolves the name shown for the conversation: the other
// member for direct threads, the group name otherwise.
func (c *Conversation) DisplayName(selfID int64) string {
	if c.Type == ConversationDirect {
		if m := c.OtherMember(selfID); m != nil && m.User != nil {
			return m.User.DisplayName()
		}
		return "unknown user"
	}
	if c.Name != "" {
		return c.Name
	}
	return "unnamed group"
}
