package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConnectionState is the transport-level state of the socket.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// Envelope is the wire format for every event in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound wire event types.
const (
	EventNewMessage       = "new_message"
	EventMessageRead      = "message_read"
	EventConversationRead = "conversation_read"
	EventUserStatus       = "user_status"
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
)

// Event is a typed inbound event delivered on the connection manager's
// event channel, in transport order. The set is closed: consumers switch
// exhaustively over the concrete types below.
type Event interface {
	event()
}

// StateChanged reports a transport state transition. It is synthesized by
// the connection manager, not decoded from the wire.
type StateChanged struct {
	State   ConnectionState
	Attempt int
}

// NewMessage carries a server-canonical message broadcast.
type NewMessage struct {
	Message Message
}

// MessageRead reports that a user read one message.
type MessageRead struct {
	MessageID      int64     `json:"message_id"`
	UserID         int64     `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
	ConversationID int64     `json:"conversation_id"`
}

// ConversationRead reports that a user read a whole conversation.
type ConversationRead struct {
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
	UnreadCount    int       `json:"unread_count"`
}

// UserStatusChanged reports a presence change.
type UserStatusChanged struct {
	UserID int64      `json:"user_id"`
	Status UserStatus `json:"status"`
}

// MemberJoined reports a client joining the conversation room.
type MemberJoined struct {
	ClientID string `json:"client_id"`
	UserID   int64  `json:"user_id,omitempty"`
}

// MemberLeft reports a client leaving the conversation room.
type MemberLeft struct {
	ClientID string `json:"client_id"`
	UserID   int64  `json:"user_id,omitempty"`
}

func (StateChanged) event()      {}
func (NewMessage) event()        {}
func (MessageRead) event()       {}
func (ConversationRead) event()  {}
func (UserStatusChanged) event() {}
func (MemberJoined) event()      {}
func (MemberLeft) event()        {}

// DecodeEvent parses one wire frame into its typed event.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case EventNewMessage:
		var msg Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return NewMessage{Message: msg}, nil
	case EventMessageRead:
		var ev MessageRead
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case EventConversationRead:
		var ev ConversationRead
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case EventUserStatus:
		var ev UserStatusChanged
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case EventUserJoined:
		var ev MemberJoined
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	case EventUserLeft:
		var ev MemberLeft
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}
