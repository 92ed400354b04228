package service

import (
	"go.uber.org/zap"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/internal/store"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
)

// Presence applies remote user-status events onto cached membership. Only
// the active conversation is patched: presence is reflected for what is
// currently rendered, nothing more. Last write wins; rapid successive
// events for the same user need no ordering guarantee.
type Presence struct {
	store *store.Store
	log   *logger.Logger
}

// NewPresence creates the presence propagator.
func NewPresence(st *store.Store, log *logger.Logger) *Presence {
	return &Presence{store: st, log: log}
}

// ApplyStatus overwrites the cached user status for matching members of
// the active conversation.
func (p *Presence) ApplyStatus(userID int64, status model.UserStatus) {
	if p.store.UpdateActiveMemberStatus(userID, status) {
		p.log.Debug("presence applied",
			zap.Int64("user_id", userID),
			zap.String("status", string(status)),
		)
	}
}
