package model

import (
	"time"
)

// MessageType represents the kind of content a message carries.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// DeliveryStatus represents per-recipient delivery progress.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// MessageStatus is one recipient's delivery state for one message.
// The pair (MessageID, UserID) is unique within a message's status list.
type MessageStatus struct {
	MessageID int64          `json:"message_id"`
	UserID    int64          `json:"user_id"`
	Status    DeliveryStatus `json:"status"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// Attachment is an uploaded file reference linked to a message.
type Attachment struct {
	ID           int64  `json:"id"`
	FileURL      string `json:"file_url"`
	FileName     string `json:"file_name,omitempty"`
	FileType     string `json:"file_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Message is one unit of content within a conversation. ID is server
// assigned; a message the client has dispatched but the server has not yet
// echoed back has no ID and is tracked by the outgoing pipeline's
// correlation key instead.
type Message struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversation_id"`
	SenderID       int64           `json:"sender_id"`
	Content        string          `json:"content"`
	Type           MessageType     `json:"message_type"`
	CreatedAt      time.Time       `json:"created_at"`
	Statuses       []MessageStatus `json:"statuses,omitempty"`
	Attachments    []Attachment    `json:"attachments,omitempty"`
}

// ReadBy reports whether userID already has a read status entry on the
// message.
func (m *Message) ReadBy(userID int64) bool {
	for i := range m.Statuses {
		if m.Statuses[i].UserID == userID && m.Statuses[i].Status == StatusRead {
			return true
		}
	}
	return false
}

// OutgoingMessage is the payload dispatched over the wire for a send. The
// server assigns the id and echoes the canonical message back as a
// new_message event.
type OutgoingMessage struct {
	ConversationID int64       `json:"conversation_id"`
	SenderID       int64       `json:"sender_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"message_type"`
	AttachmentIDs  []int64     `json:"attachment_ids,omitempty"`
}
