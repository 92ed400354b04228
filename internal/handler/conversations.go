package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulsechat/pulsechat-go/internal/engine"
	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/internal/service"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
)

// ConversationHandler exposes the engine's conversation actions over the
// local control API.
type ConversationHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(eng *engine.Engine, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{engine: eng, log: log}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Store().Conversations())
}

// Messages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Store().Messages(id))
}

// Activate handles POST /api/v1/conversations/{id}/activate
func (h *ConversationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	if err := h.engine.SetActiveConversation(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.log.Error("activate failed", zap.Int64("conversation_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to activate conversation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"active_conversation_id": id})
}

type sendRequest struct {
	Content string `json:"content"`
}

// Send handles POST /api/v1/conversations/{id}/messages. A JSON body
// sends plain text; a multipart body may carry a content field plus
// attachment files.
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	content, files, err := parseSendBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if content == "" && len(files) == 0 {
		writeError(w, http.StatusBadRequest, "content or files required")
		return
	}

	if err := h.engine.SendMessage(r.Context(), id, content, files); err != nil {
		var upErr *model.UploadError
		if errors.As(err, &upErr) {
			writeError(w, http.StatusBadGateway, upErr.Error())
			return
		}
		if errors.Is(err, model.ErrSendRejected) {
			writeError(w, http.StatusServiceUnavailable, "not connected")
			return
		}
		h.log.Error("send failed", zap.Int64("conversation_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to send message")
		return
	}

	// The message appears once the server echoes it back.
	w.WriteHeader(http.StatusAccepted)
}

type directRequest struct {
	FriendID int64 `json:"friend_id"`
}

// StartDirect handles POST /api/v1/conversations/direct
func (h *ConversationHandler) StartDirect(w http.ResponseWriter, r *http.Request) {
	var req directRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FriendID == 0 {
		writeError(w, http.StatusBadRequest, "friend_id is required")
		return
	}

	conv, err := h.engine.StartDirectConversation(r.Context(), req.FriendID)
	if err != nil {
		h.log.Error("start direct failed", zap.Int64("friend_id", req.FriendID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to start conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/v1/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	if err := h.engine.DeleteConversation(r.Context(), id); err != nil {
		h.log.Error("delete failed", zap.Int64("conversation_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

// Typing handles POST /api/v1/conversations/{id}/typing
func (h *ConversationHandler) Typing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req typingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.SetTyping(r.Context(), id, req.Typing); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not connected")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

const maxUploadMemory = 32 << 20 // 32 MiB

// parseSendBody accepts either a JSON {"content": ...} body or a
// multipart form with a content field and attachment files.
func parseSendBody(r *http.Request) (string, []service.File, error) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "multipart/form-data") {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", nil, errors.New("invalid request body")
		}
		return req.Content, nil, nil
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return "", nil, errors.New("invalid multipart body")
	}
	content := r.FormValue("content")

	var files []service.File
	if r.MultipartForm != nil {
		for _, hdr := range r.MultipartForm.File["files"] {
			f, err := hdr.Open()
			if err != nil {
				return "", nil, errors.New("unreadable attachment")
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return "", nil, errors.New("unreadable attachment")
			}
			files = append(files, service.File{
				Name:        hdr.Filename,
				ContentType: hdr.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return content, files, nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
