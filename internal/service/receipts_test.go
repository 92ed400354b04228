package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/internal/store"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
)

const testSettle = 5 * time.Millisecond

func newReceiptsFixture(t *testing.T) (*Receipts, *fakeSender, *store.Store) {
	t.Helper()
	sender := &fakeSender{state: model.StateConnected}
	st := store.New(logger.NewNop())
	r := NewReceipts(sender, st, 7, testSettle, logger.NewNop())
	t.Cleanup(r.Stop)
	return r, sender, st
}

func seedActive(t *testing.T, st *store.Store, convID int64, msgs ...model.Message) {
	t.Helper()
	st.UpsertConversations([]model.Conversation{{ID: convID}})
	st.SeedMessages(convID, msgs)
	require.NoError(t, st.SetActive(convID))
}

func markCommands(sender *fakeSender) (convMarks []model.MarkConversationRead, msgMarks []model.MarkRead) {
	for _, cmd := range sender.commands() {
		switch c := cmd.(type) {
		case model.MarkConversationRead:
			convMarks = append(convMarks, c)
		case model.MarkRead:
			msgMarks = append(msgMarks, c)
		}
	}
	return convMarks, msgMarks
}

func TestMarkPassSkipsOwnAndAlreadyRead(t *testing.T) {
	r, sender, st := newReceiptsFixture(t)
	readAt := time.Now()
	seedActive(t, st, 1,
		model.Message{ID: 10, SenderID: 2},
		model.Message{ID: 11, SenderID: 7}, // our own message
		model.Message{ID: 12, SenderID: 2, Statuses: []model.MessageStatus{
			{MessageID: 12, UserID: 7, Status: model.StatusRead, ReadAt: &readAt},
		}},
		model.Message{ID: 13, SenderID: 3},
	)

	r.OnConversationActivated(1)

	require.Eventually(t, func() bool {
		_, msgMarks := markCommands(sender)
		return len(msgMarks) == 2
	}, time.Second, time.Millisecond)

	convMarks, msgMarks := markCommands(sender)
	require.Len(t, convMarks, 1)
	require.Equal(t, int64(1), convMarks[0].ConversationID)

	ids := []int64{msgMarks[0].MessageID, msgMarks[1].MessageID}
	require.ElementsMatch(t, []int64{10, 13}, ids)
}

func TestMarkPassOnlyOnceForConversation(t *testing.T) {
	r, sender, st := newReceiptsFixture(t)
	seedActive(t, st, 1, model.Message{ID: 10, SenderID: 2})

	r.OnConversationActivated(1)
	require.Eventually(t, func() bool {
		convMarks, _ := markCommands(sender)
		return len(convMarks) == 1
	}, time.Second, time.Millisecond)

	// A new message arriving in the active conversation triggers another
	// pass, but the conversation-level mark is not repeated and neither is
	// the per-message mark for the already-marked message.
	st.AppendMessage(1, model.Message{ID: 20, SenderID: 2})
	r.OnNewMessage(1)

	require.Eventually(t, func() bool {
		_, msgMarks := markCommands(sender)
		return len(msgMarks) == 2
	}, time.Second, time.Millisecond)

	convMarks, msgMarks := markCommands(sender)
	require.Len(t, convMarks, 1)
	require.ElementsMatch(t, []int64{10, 20},
		[]int64{msgMarks[0].MessageID, msgMarks[1].MessageID})
}

func TestMarkPassSkippedWhenConversationChanged(t *testing.T) {
	r, sender, st := newReceiptsFixture(t)
	st.UpsertConversations([]model.Conversation{{ID: 1}, {ID: 2}})
	st.SeedMessages(1, []model.Message{{ID: 10, SenderID: 2}})
	require.NoError(t, st.SetActive(1))

	r.OnConversationActivated(1)
	// Switch away before the settle delay elapses.
	require.NoError(t, st.SetActive(2))
	r.OnConversationActivated(2)

	time.Sleep(10 * testSettle)

	convMarks, msgMarks := markCommands(sender)
	require.Empty(t, msgMarks, "stale pass for conversation 1 must not fire")
	require.Len(t, convMarks, 1)
	require.Equal(t, int64(2), convMarks[0].ConversationID)
}

func TestOnNewMessageIgnoresInactiveConversation(t *testing.T) {
	r, sender, st := newReceiptsFixture(t)
	seedActive(t, st, 1)
	st.AppendMessage(2, model.Message{ID: 30, SenderID: 2})

	r.OnNewMessage(2)
	time.Sleep(10 * testSettle)
	require.Empty(t, sender.commands())
}

func TestApplyMessageReadOnlyActive(t *testing.T) {
	r, _, st := newReceiptsFixture(t)
	st.UpsertConversations([]model.Conversation{{ID: 1}, {ID: 2}})
	st.SeedMessages(1, []model.Message{{ID: 10, SenderID: 7}})
	st.SeedMessages(2, []model.Message{{ID: 20, SenderID: 7}})
	require.NoError(t, st.SetActive(1))

	at := time.Now()
	r.ApplyMessageRead(model.MessageRead{ConversationID: 2, MessageID: 20, UserID: 3, ReadAt: at})
	require.Empty(t, st.Messages(2)[0].Statuses, "non-active receipts are dropped")

	r.ApplyMessageRead(model.MessageRead{ConversationID: 1, MessageID: 10, UserID: 3, ReadAt: at})
	msgs := st.Messages(1)
	require.Len(t, msgs[0].Statuses, 1)
	require.True(t, msgs[0].ReadBy(3))
}

func TestApplyMessageReadDuplicateLatestWins(t *testing.T) {
	r, _, st := newReceiptsFixture(t)
	seedActive(t, st, 1, model.Message{ID: 10, SenderID: 7})

	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	r.ApplyMessageRead(model.MessageRead{ConversationID: 1, MessageID: 10, UserID: 3, ReadAt: t1})
	r.ApplyMessageRead(model.MessageRead{ConversationID: 1, MessageID: 10, UserID: 3, ReadAt: t2})

	statuses := st.Messages(1)[0].Statuses
	require.Len(t, statuses, 1)
	require.Equal(t, t2, *statuses[0].ReadAt)
}

func TestApplyConversationRead(t *testing.T) {
	r, _, st := newReceiptsFixture(t)
	seedActive(t, st, 1,
		model.Message{ID: 10, SenderID: 7},
		model.Message{ID: 11, SenderID: 7},
	)

	at := time.Now()
	r.ApplyConversationRead(model.ConversationRead{ConversationID: 1, UserID: 3, ReadAt: at})
	r.ApplyConversationRead(model.ConversationRead{ConversationID: 1, UserID: 3, ReadAt: at})

	for _, m := range st.Messages(1) {
		require.True(t, m.ReadBy(3))
		require.Len(t, m.Statuses, 1, "re-applied receipt must not duplicate")
	}
}
