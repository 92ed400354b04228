package model

import (
	"encoding/json"
	"fmt"
)

// Outbound wire event types.
const (
	CommandSendMessage          = "send_message"
	CommandMarkRead             = "mark_read"
	CommandMarkConversationRead = "mark_conversation_read"
	CommandJoinConversation     = "join_conversation"
	CommandLeaveConversation    = "leave_conversation"
	CommandTypingStart          = "typing_start"
	CommandTypingStop           = "typing_stop"
)

// Command is a typed outbound event. Commands are fire-and-forget: any
// acknowledgement arrives later as a distinct inbound event.
type Command interface {
	CommandType() string
}

// SendMessage dispatches a composed message. The server persists it and
// broadcasts the canonical echo as a new_message event.
type SendMessage struct {
	Message OutgoingMessage
}

// MarkRead marks a single message read by the current user.
type MarkRead struct {
	MessageID int64 `json:"message_id"`
}

// MarkConversationRead marks a whole conversation read by the current user.
type MarkConversationRead struct {
	ConversationID int64 `json:"conversation_id"`
}

// JoinConversation subscribes the connection to a conversation room.
type JoinConversation struct {
	ConversationID int64 `json:"conversation_id"`
}

// LeaveConversation unsubscribes the connection from a conversation room.
type LeaveConversation struct {
	ConversationID int64 `json:"conversation_id"`
}

// TypingStart signals the user started typing in a conversation.
type TypingStart struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
}

// TypingStop signals the user stopped typing in a conversation.
type TypingStop struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
}

func (SendMessage) CommandType() string          { return CommandSendMessage }
func (MarkRead) CommandType() string             { return CommandMarkRead }
func (MarkConversationRead) CommandType() string { return CommandMarkConversationRead }
func (JoinConversation) CommandType() string     { return CommandJoinConversation }
func (LeaveConversation) CommandType() string    { return CommandLeaveConversation }
func (TypingStart) CommandType() string          { return CommandTypingStart }
func (TypingStop) CommandType() string           { return CommandTypingStop }

// EncodeCommand serializes a command into its wire frame.
func EncodeCommand(cmd Command) ([]byte, error) {
	var payload any = cmd
	if sm, ok := cmd.(SendMessage); ok {
		payload = sm.Message
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", cmd.CommandType(), err)
	}
	return json.Marshal(Envelope{Type: cmd.CommandType(), Payload: raw})
}
