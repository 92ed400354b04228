package model

import (
	"time"
)

// UserStatus is a user's presence state.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
	UserStatusAway    UserStatus = "away"
)

// User is a chat participant as the server describes them. Status is the
// only field the client mutates locally, driven by presence events.
type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	Status    UserStatus `json:"status,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
