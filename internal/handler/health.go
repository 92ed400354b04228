package handler

import (
	"net/http"

	"github.com/pulsechat/pulsechat-go/internal/engine"
	"github.com/pulsechat/pulsechat-go/internal/model"
)

// HealthHandler handles health check and status endpoints.
type HealthHandler struct {
	engine *engine.Engine
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(eng *engine.Engine) *HealthHandler {
	return &HealthHandler{engine: eng}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine.ConnectionState() != model.StateConnected {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "socket not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Status handles GET /api/v1/status
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Store()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connection_state":       h.engine.ConnectionState(),
		"active_conversation_id": st.ActiveID(),
		"conversation_count":     len(st.Conversations()),
	})
}
