package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/internal/store"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
	"github.com/pulsechat/pulsechat-go/pkg/metrics"
)

// Receipts reconciles read state in both directions: it decides when to
// emit mark-as-read requests for the active conversation and applies
// inbound receipt events onto cached messages, deduplicated by
// (message_id, user_id).
type Receipts struct {
	sender      Sender
	store       *store.Store
	selfID      int64
	settleDelay time.Duration
	log         *logger.Logger

	mu         sync.Mutex
	timer      *time.Timer
	markedConv int64
	sentMarks  map[int64]struct{}
}

// NewReceipts creates the read-receipt reconciler. settleDelay is the
// pause between conversation activation and the read-marking pass, giving
// the view a chance to render first.
func NewReceipts(sender Sender, st *store.Store, selfID int64, settleDelay time.Duration, log *logger.Logger) *Receipts {
	return &Receipts{
		sender:      sender,
		store:       st,
		selfID:      selfID,
		settleDelay: settleDelay,
		log:         log,
		sentMarks:   make(map[int64]struct{}),
	}
}

// OnConversationActivated schedules the read-marking pass for a freshly
// activated conversation. Re-activation before the settle delay elapses
// reschedules instead of stacking passes.
func (r *Receipts) OnConversationActivated(conversationID int64) {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.markedConv = 0
	r.sentMarks = make(map[int64]struct{})
	r.timer = time.AfterFunc(r.settleDelay, func() {
		r.runMarkPass(conversationID)
	})
	r.mu.Unlock()
}

// OnNewMessage schedules a mark pass when a message lands in the active
// conversation, so freshly arrived content is marked read after the same
// settle delay.
func (r *Receipts) OnNewMessage(conversationID int64) {
	if conversationID != r.store.ActiveID() {
		return
	}
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.settleDelay, func() {
		r.runMarkPass(conversationID)
	})
	r.mu.Unlock()
}

// Stop cancels any pending mark pass.
func (r *Receipts) Stop() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
}

// runMarkPass emits one mark_conversation_read per activation plus a
// mark_read for every unread message from someone else. Messages already
// carrying our read status, or already marked this activation, are
// skipped.
func (r *Receipts) runMarkPass(conversationID int64) {
	if conversationID != r.store.ActiveID() {
		return
	}
	ctx := context.Background()

	r.mu.Lock()
	needConvMark := r.markedConv != conversationID
	if needConvMark {
		r.markedConv = conversationID
	}
	r.mu.Unlock()

	if needConvMark {
		if err := r.sender.Send(ctx, model.MarkConversationRead{ConversationID: conversationID}); err != nil {
			r.log.Warn("mark conversation read failed",
				zap.Int64("conversation_id", conversationID),
				zap.Error(err),
			)
		} else {
			metrics.ReadReceiptsTotal.WithLabelValues("conversation").Inc()
		}
	}

	for _, msg := range r.store.Messages(conversationID) {
		if msg.SenderID == r.selfID || msg.ReadBy(r.selfID) {
			continue
		}
		r.mu.Lock()
		_, sent := r.sentMarks[msg.ID]
		if !sent {
			r.sentMarks[msg.ID] = struct{}{}
		}
		r.mu.Unlock()
		if sent {
			continue
		}

		if err := r.sender.Send(ctx, model.MarkRead{MessageID: msg.ID}); err != nil {
			r.log.Warn("mark read failed",
				zap.Int64("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.ReadReceiptsTotal.WithLabelValues("message").Inc()
	}
}

// ApplyMessageRead applies an inbound per-message receipt. Receipts for a
// non-active conversation are ignored; duplicates for the same
// (message, user) pair collapse to one status entry with the latest
// read_at.
func (r *Receipts) ApplyMessageRead(ev model.MessageRead) {
	if ev.ConversationID != r.store.ActiveID() {
		return
	}
	at := ev.ReadAt
	r.store.UpdateMessageStatus(ev.ConversationID, model.MessageStatus{
		MessageID: ev.MessageID,
		UserID:    ev.UserID,
		Status:    model.StatusRead,
		ReadAt:    &at,
	})
}

// ApplyConversationRead applies an inbound conversation-level receipt to
// every cached message of that conversation. Idempotent.
func (r *Receipts) ApplyConversationRead(ev model.ConversationRead) {
	r.store.MarkConversationRead(ev.ConversationID, ev.UserID, ev.ReadAt)
}
