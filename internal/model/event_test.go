package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeNewMessage(t *testing.T) {
	data := []byte(`{
		"type": "new_message",
		"payload": {
			"id": 10,
			"conversation_id": 5,
			"sender_id": 2,
			"content": "hello",
			"message_type": "text",
			"statuses": [{"message_id": 10, "user_id": 3, "status": "delivered"}]
		}
	}`)

	ev, err := DecodeEvent(data)
	require.NoError(t, err)

	nm, ok := ev.(NewMessage)
	require.True(t, ok, "expected NewMessage, got %T", ev)
	require.Equal(t, int64(10), nm.Message.ID)
	require.Equal(t, MessageText, nm.Message.Type)
	require.Len(t, nm.Message.Statuses, 1)
}

func TestDecodeReceiptEvents(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{
		"type": "message_read",
		"payload": {"message_id": 10, "user_id": 3, "conversation_id": 5, "read_at": "2026-03-01T12:00:00Z"}
	}`))
	require.NoError(t, err)
	mr := ev.(MessageRead)
	require.Equal(t, int64(10), mr.MessageID)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), mr.ReadAt)

	ev, err = DecodeEvent([]byte(`{
		"type": "conversation_read",
		"payload": {"conversation_id": 5, "user_id": 3, "read_at": "2026-03-01T12:00:00Z", "unread_count": 4}
	}`))
	require.NoError(t, err)
	cr := ev.(ConversationRead)
	require.Equal(t, int64(5), cr.ConversationID)
	require.Equal(t, 4, cr.UnreadCount)
}

func TestDecodePresenceAndRoomEvents(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type": "user_status", "payload": {"user_id": 3, "status": "away"}}`))
	require.NoError(t, err)
	require.Equal(t, UserStatusChanged{UserID: 3, Status: UserStatusAway}, ev)

	ev, err = DecodeEvent([]byte(`{"type": "user_joined", "payload": {"client_id": "abc", "user_id": 3}}`))
	require.NoError(t, err)
	require.Equal(t, MemberJoined{ClientID: "abc", UserID: 3}, ev)

	ev, err = DecodeEvent([]byte(`{"type": "user_left", "payload": {"client_id": "abc"}}`))
	require.NoError(t, err)
	require.Equal(t, MemberLeft{ClientID: "abc"}, ev)
}

func TestDecodeRejectsUnknownAndMalformed(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type": "mystery", "payload": {}}`))
	require.Error(t, err)

	_, err = DecodeEvent([]byte(`not json`))
	require.Error(t, err)

	_, err = DecodeEvent([]byte(`{"type": "new_message", "payload": "not-an-object"}`))
	require.Error(t, err)
}

func TestEncodeSendMessageFlattensPayload(t *testing.T) {
	data, err := EncodeCommand(SendMessage{Message: OutgoingMessage{
		ConversationID: 5,
		SenderID:       7,
		Content:        "hi",
		Type:           MessageText,
		AttachmentIDs:  []int64{1, 2},
	}})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, CommandSendMessage, env.Type)

	// The payload is the message itself, not a wrapper object.
	var out OutgoingMessage
	require.NoError(t, json.Unmarshal(env.Payload, &out))
	require.Equal(t, int64(5), out.ConversationID)
	require.Equal(t, []int64{1, 2}, out.AttachmentIDs)
}

func TestEncodeCommandTypes(t *testing.T) {
	cases := []struct {
		cmd      Command
		wantType string
	}{
		{MarkRead{MessageID: 10}, CommandMarkRead},
		{MarkConversationRead{ConversationID: 5}, CommandMarkConversationRead},
		{JoinConversation{ConversationID: 5}, CommandJoinConversation},
		{LeaveConversation{ConversationID: 5}, CommandLeaveConversation},
		{TypingStart{ConversationID: 5, UserID: 7}, CommandTypingStart},
		{TypingStop{ConversationID: 5, UserID: 7}, CommandTypingStop},
	}
	for _, tc := range cases {
		data, err := EncodeCommand(tc.cmd)
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		require.Equal(t, tc.wantType, env.Type)
	}
}
