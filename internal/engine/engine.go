// Package engine is the conversation synchronization engine: a single
// dispatcher that applies the socket's event stream onto the store and
// pipelines in delivery order, plus the action surface the UI drives.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/internal/service"
	"github.com/pulsechat/pulsechat-go/internal/store"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
)

// Socket is the connection manager surface the engine consumes.
type Socket interface {
	service.Sender
	Events() <-chan model.Event
	Connect(ctx context.Context, userID int64, token string) error
	Disconnect()
}

// Backend is the HTTP collaborator used for persistence reads and
// conversation lifecycle side effects.
type Backend interface {
	ConversationsByUser(ctx context.Context) ([]model.Conversation, error)
	MessagesByConversation(ctx context.Context, conversationID int64) ([]model.Message, error)
	GetOrCreateDirect(ctx context.Context, friendID int64) (model.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID int64) error
}

// Engine coordinates the socket, store, and pipelines. All inbound state
// transitions are serialized through Run's single goroutine; actions
// mutate only through the store's operations.
type Engine struct {
	sock     Socket
	store    *store.Store
	outgoing *service.Outgoing
	receipts *service.Receipts
	presence *service.Presence
	backend  Backend
	selfID   int64
	token    string
	log      *logger.Logger
}

// New wires the engine with explicit collaborators.
func New(
	sock Socket,
	st *store.Store,
	outgoing *service.Outgoing,
	receipts *service.Receipts,
	presence *service.Presence,
	backend Backend,
	selfID int64,
	token string,
	log *logger.Logger,
) *Engine {
	return &Engine{
		sock:     sock,
		store:    st,
		outgoing: outgoing,
		receipts: receipts,
		presence: presence,
		backend:  backend,
		selfID:   selfID,
		token:    token,
		log:      log,
	}
}

// Store exposes the conversation cache for read access.
func (e *Engine) Store() *store.Store { return e.store }

// ConnectionState reports the socket state.
func (e *Engine) ConnectionState() model.ConnectionState { return e.sock.State() }

// Connect opens the socket with the engine's credentials.
func (e *Engine) Connect(ctx context.Context) error {
	return e.sock.Connect(ctx, e.selfID, e.token)
}

// Run consumes the socket event stream until the context is cancelled.
// Events are applied one at a time in delivery order; nothing is
// reordered, batched, or coalesced.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.sock.Events():
			if !ok {
				return
			}
			e.apply(ev)
		}
	}
}

func (e *Engine) apply(ev model.Event) {
	switch ev := ev.(type) {
	case model.StateChanged:
		e.log.Info("connection state",
			zap.String("state", string(ev.State)),
			zap.Int("attempt", ev.Attempt),
		)
		if ev.State == model.StateConnected {
			e.rejoinActive()
		}

	case model.NewMessage:
		msg := ev.Message
		appended := e.store.AppendMessage(msg.ConversationID, msg)
		e.store.MoveToTop(msg.ConversationID)
		if appended && msg.SenderID != e.selfID {
			e.receipts.OnNewMessage(msg.ConversationID)
		}

	case model.MessageRead:
		e.receipts.ApplyMessageRead(ev)

	case model.ConversationRead:
		e.receipts.ApplyConversationRead(ev)

	case model.UserStatusChanged:
		e.presence.ApplyStatus(ev.UserID, ev.Status)

	case model.MemberJoined:
		e.log.Debug("member joined",
			zap.String("client_id", ev.ClientID),
			zap.Int64("user_id", ev.UserID),
		)

	case model.MemberLeft:
		e.log.Debug("member left",
			zap.String("client_id", ev.ClientID),
			zap.Int64("user_id", ev.UserID),
		)
	}
}

// rejoinActive re-subscribes the fresh connection to the active
// conversation's room after a reconnect.
func (e *Engine) rejoinActive() {
	active := e.store.ActiveID()
	if active == 0 {
		return
	}
	if err := e.sock.Send(context.Background(), model.JoinConversation{ConversationID: active}); err != nil {
		e.log.Warn("rejoin failed", zap.Int64("conversation_id", active), zap.Error(err))
	}
}

// LoadConversations populates the store from the HTTP boundary.
func (e *Engine) LoadConversations(ctx context.Context) error {
	convs, err := e.backend.ConversationsByUser(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	e.store.UpsertConversations(convs)
	return nil
}

// SetActiveConversation switches the active conversation: it leaves the
// previous room, joins the new one, fetches its history, and schedules
// the read-marking pass. Passing 0 deactivates.
func (e *Engine) SetActiveConversation(ctx context.Context, conversationID int64) error {
	if prev := e.store.ActiveID(); prev != 0 && prev != conversationID {
		// Best effort; a dropped socket re-joins on reconnect anyway.
		_ = e.sock.Send(ctx, model.LeaveConversation{ConversationID: prev})
	}

	if err := e.store.SetActive(conversationID); err != nil {
		return err
	}
	if conversationID == 0 {
		return nil
	}

	_ = e.sock.Send(ctx, model.JoinConversation{ConversationID: conversationID})

	history, err := e.backend.MessagesByConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	e.store.SeedMessages(conversationID, history)

	e.receipts.OnConversationActivated(conversationID)
	return nil
}

// SendMessage dispatches a compose action through the outgoing pipeline.
func (e *Engine) SendMessage(ctx context.Context, conversationID int64, content string, files []service.File) error {
	return e.outgoing.Send(ctx, conversationID, content, files)
}

// StartDirectConversation gets or creates the direct conversation with a
// friend and activates it.
func (e *Engine) StartDirectConversation(ctx context.Context, friendID int64) (model.Conversation, error) {
	conv, err := e.backend.GetOrCreateDirect(ctx, friendID)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("get or create direct: %w", err)
	}
	e.store.AddConversation(conv)
	if err := e.SetActiveConversation(ctx, conv.ID); err != nil {
		return conv, err
	}
	return conv, nil
}

// DeleteConversation deletes server-side and purges the cache entry.
func (e *Engine) DeleteConversation(ctx context.Context, conversationID int64) error {
	if err := e.backend.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	e.store.DeleteConversation(conversationID)
	return nil
}

// SetTyping emits a typing indicator for the conversation.
func (e *Engine) SetTyping(ctx context.Context, conversationID int64, typing bool) error {
	var cmd model.Command
	if typing {
		cmd = model.TypingStart{ConversationID: conversationID, UserID: e.selfID}
	} else {
		cmd = model.TypingStop{ConversationID: conversationID, UserID: e.selfID}
	}
	return e.sock.Send(ctx, cmd)
}

// Shutdown stops pending receipt work and closes the socket.
func (e *Engine) Shutdown() {
	e.receipts.Stop()
	e.sock.Disconnect()
}
