// Package store holds the authoritative client-side cache of conversations
// and messages. Every other component mutates conversation state through
// the operations here; none keeps a private copy.
package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
	"github.com/pulsechat/pulsechat-go/pkg/metrics"
)

// ChangeKind identifies which mutation an observer is being told about.
type ChangeKind string

const (
	ChangeConversations       ChangeKind = "conversations"
	ChangeActive              ChangeKind = "active"
	ChangeMessageAppended     ChangeKind = "message_appended"
	ChangeMessageStatus       ChangeKind = "message_status"
	ChangeConversationMoved   ChangeKind = "conversation_moved"
	ChangeConversationDeleted ChangeKind = "conversation_deleted"
	ChangePresence            ChangeKind = "presence"
)

// Change describes one applied mutation. Observers are notified
// synchronously after the mutation is fully applied.
type Change struct {
	Kind           ChangeKind
	ConversationID int64
	MessageID      int64
}

// Observer receives store change notifications.
type Observer func(Change)

// Store is the single source of truth for conversations, per-conversation
// message caches, and the active conversation. The visible message list is
// a view over the active conversation's cache, so the two can never
// diverge.
type Store struct {
	log *logger.Logger

	mu       sync.RWMutex
	order    []int64
	convs    map[int64]*model.Conversation
	messages map[int64][]model.Message
	msgIndex map[int64]map[int64]int
	activeID int64

	obsMu     sync.RWMutex
	observers []Observer
}

// New creates an empty store.
func New(log *logger.Logger) *Store {
	return &Store{
		log:      log,
		convs:    make(map[int64]*model.Conversation),
		messages: make(map[int64][]model.Message),
		msgIndex: make(map[int64]map[int64]int),
	}
}

// Subscribe registers an observer for change notifications.
func (s *Store) Subscribe(obs Observer) {
	s.obsMu.Lock()
	s.observers = append(s.observers, obs)
	s.obsMu.Unlock()
}

func (s *Store) notify(c Change) {
	s.obsMu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.RUnlock()
	for _, obs := range observers {
		obs(c)
	}
}

// UpsertConversations replaces the cached conversation list in the given
// order. Message caches are untouched.
func (s *Store) UpsertConversations(list []model.Conversation) {
	s.mu.Lock()
	s.order = s.order[:0]
	s.convs = make(map[int64]*model.Conversation, len(list))
	for i := range list {
		c := list[i]
		s.order = append(s.order, c.ID)
		s.convs[c.ID] = &c
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeConversations})
}

// AddConversation inserts a conversation if it is not cached yet; an
// existing entry is replaced in place. Used for get-or-create responses.
func (s *Store) AddConversation(conv model.Conversation) {
	s.mu.Lock()
	if _, ok := s.convs[conv.ID]; !ok {
		s.order = append(s.order, conv.ID)
	}
	s.convs[conv.ID] = &conv
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeConversations, ConversationID: conv.ID})
}

// SetActive switches the active conversation. Passing 0 deactivates:
// the visible list becomes empty, but per-conversation message caches
// survive. Activating an id not in the cache is an error.
func (s *Store) SetActive(conversationID int64) error {
	s.mu.Lock()
	if conversationID != 0 {
		if _, ok := s.convs[conversationID]; !ok {
			s.mu.Unlock()
			return model.ErrConversationNotFound
		}
	}
	s.activeID = conversationID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeActive, ConversationID: conversationID})
	return nil
}

// ActiveID returns the active conversation id, 0 when none.
func (s *Store) ActiveID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns a copy of the active conversation.
func (s *Store) Active() (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == 0 {
		return model.Conversation{}, false
	}
	c, ok := s.convs[s.activeID]
	if !ok {
		return model.Conversation{}, false
	}
	return *c, true
}

// Conversations returns the cached conversation list in order.
func (s *Store) Conversations() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.convs[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// Conversation returns a copy of one cached conversation.
func (s *Store) Conversation(conversationID int64) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return model.Conversation{}, false
	}
	return *c, true
}

// Messages returns a copy of one conversation's cached messages.
func (s *Store) Messages(conversationID int64) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.messages[conversationID])
}

// Visible returns the messages of the active conversation, empty when no
// conversation is active. It is a view over the cache: the visible list
// always equals the cached list for the active conversation.
func (s *Store) Visible() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == 0 {
		return nil
	}
	return copyMessages(s.messages[s.activeID])
}

// SeedMessages replaces a conversation's message cache with a fetched
// history. Order is preserved as given.
func (s *Store) SeedMessages(conversationID int64, msgs []model.Message) {
	s.mu.Lock()
	s.messages[conversationID] = copyMessages(msgs)
	idx := make(map[int64]int, len(msgs))
	for i := range msgs {
		if msgs[i].ID != 0 {
			idx[msgs[i].ID] = i
		}
	}
	s.msgIndex[conversationID] = idx
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMessageAppended, ConversationID: conversationID})
}

// AppendMessage appends to a conversation's message cache and bumps its
// last_message_at. Appending an id already present is a no-op: the server
// echo of an optimistically dispatched message must not duplicate it.
// A message referencing an unknown conversation creates a minimal
// placeholder entry instead of being dropped.
func (s *Store) AppendMessage(conversationID int64, msg model.Message) bool {
	s.mu.Lock()

	idx, ok := s.msgIndex[conversationID]
	if !ok {
		idx = make(map[int64]int)
		s.msgIndex[conversationID] = idx
	}
	if msg.ID != 0 {
		if _, dup := idx[msg.ID]; dup {
			s.mu.Unlock()
			metrics.DuplicateEventsTotal.WithLabelValues(model.EventNewMessage).Inc()
			s.log.Debug("duplicate message absorbed",
				zap.Int64("conversation_id", conversationID),
				zap.Int64("message_id", msg.ID),
			)
			return false
		}
	}

	conv, known := s.convs[conversationID]
	if !known {
		// Placeholder rather than silent data loss; the next conversation
		// refresh fills in the real membership and metadata.
		conv = &model.Conversation{ID: conversationID}
		s.convs[conversationID] = conv
		s.order = append(s.order, conversationID)
	}

	s.messages[conversationID] = append(s.messages[conversationID], msg)
	if msg.ID != 0 {
		idx[msg.ID] = len(s.messages[conversationID]) - 1
	}

	if msg.CreatedAt.IsZero() {
		conv.LastMessageAt = time.Now()
	} else {
		conv.LastMessageAt = msg.CreatedAt
	}
	s.mu.Unlock()

	if !known {
		s.notify(Change{Kind: ChangeConversations, ConversationID: conversationID})
	}
	s.notify(Change{
		Kind:           ChangeMessageAppended,
		ConversationID: conversationID,
		MessageID:      msg.ID,
	})
	return true
}

// MoveToTop reorders the conversation list so the given id is first. It
// does not touch last_message_at, so calling it after AppendMessage yields
// exactly one reordering. Already-first ids are left alone.
func (s *Store) MoveToTop(conversationID int64) {
	s.mu.Lock()
	pos := -1
	for i, id := range s.order {
		if id == conversationID {
			pos = i
			break
		}
	}
	if pos <= 0 {
		s.mu.Unlock()
		return
	}
	copy(s.order[1:pos+1], s.order[:pos])
	s.order[0] = conversationID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeConversationMoved, ConversationID: conversationID})
}

// DeleteConversation purges a conversation and its message cache. The
// active conversation is cleared if it was the one deleted.
func (s *Store) DeleteConversation(conversationID int64) {
	s.mu.Lock()
	delete(s.convs, conversationID)
	delete(s.messages, conversationID)
	delete(s.msgIndex, conversationID)
	for i, id := range s.order {
		if id == conversationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	clearedActive := s.activeID == conversationID
	if clearedActive {
		s.activeID = 0
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeConversationDeleted, ConversationID: conversationID})
	if clearedActive {
		s.notify(Change{Kind: ChangeActive, ConversationID: 0})
	}
}

// UpdateMessageStatus applies a delivery status entry to a cached message,
// deduplicated by (message_id, user_id): a second receipt for the same
// pair overwrites the first, so the latest read_at wins. Returns false
// when the message is not cached.
func (s *Store) UpdateMessageStatus(conversationID int64, status model.MessageStatus) bool {
	s.mu.Lock()
	idx, ok := s.msgIndex[conversationID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	pos, ok := idx[status.MessageID]
	if !ok {
		s.mu.Unlock()
		return false
	}

	msg := &s.messages[conversationID][pos]
	replaced := false
	for i := range msg.Statuses {
		if msg.Statuses[i].UserID == status.UserID {
			msg.Statuses[i].Status = status.Status
			msg.Statuses[i].ReadAt = status.ReadAt
			replaced = true
			break
		}
	}
	if !replaced {
		msg.Statuses = append(msg.Statuses, status)
	}
	s.mu.Unlock()

	if replaced {
		metrics.DuplicateEventsTotal.WithLabelValues(model.EventMessageRead).Inc()
	}
	s.notify(Change{
		Kind:           ChangeMessageStatus,
		ConversationID: conversationID,
		MessageID:      status.MessageID,
	})
	return true
}

// MarkConversationRead applies a read status for userID to every cached
// message of the conversation. Idempotent per (message, user).
func (s *Store) MarkConversationRead(conversationID, userID int64, readAt time.Time) {
	s.mu.Lock()
	msgs := s.messages[conversationID]
	at := readAt
	for i := range msgs {
		found := false
		for j := range msgs[i].Statuses {
			if msgs[i].Statuses[j].UserID == userID {
				msgs[i].Statuses[j].Status = model.StatusRead
				msgs[i].Statuses[j].ReadAt = &at
				found = true
				break
			}
		}
		if !found {
			msgs[i].Statuses = append(msgs[i].Statuses, model.MessageStatus{
				MessageID: msgs[i].ID,
				UserID:    userID,
				Status:    model.StatusRead,
				ReadAt:    &at,
			})
		}
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMessageStatus, ConversationID: conversationID})
}

// UpdateActiveMemberStatus patches the denormalized user snapshot of any
// matching member of the active conversation, and only the active one.
// Last write wins; non-active list entries are deliberately not touched.
func (s *Store) UpdateActiveMemberStatus(userID int64, status model.UserStatus) bool {
	s.mu.Lock()
	if s.activeID == 0 {
		s.mu.Unlock()
		return false
	}
	conv, ok := s.convs[s.activeID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	patched := false
	for i := range conv.Members {
		if conv.Members[i].UserID == userID && conv.Members[i].User != nil {
			conv.Members[i].User.Status = status
			patched = true
		}
	}
	active := s.activeID
	s.mu.Unlock()

	if patched {
		s.notify(Change{Kind: ChangePresence, ConversationID: active})
	}
	return patched
}

func copyMessages(msgs []model.Message) []model.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}
