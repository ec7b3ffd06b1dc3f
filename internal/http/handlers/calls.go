package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// OutboundStarter is satisfied by *conversation.OutboundInitiator.
type OutboundStarter interface {
	Start(ctx context.Context, req conversation.StartRequest) (*conversation.StartResult, error)
}

// ConversationViewer is satisfied by *conversation.Manager.
type ConversationViewer interface {
	View(ctx context.Context, id int64) (*conversation.View, error)
}

// CallsHandler serves the outbound call API and conversation lookups.
type CallsHandler struct {
	starter OutboundStarter
	viewer  ConversationViewer
	logger  *logging.Logger
}

func NewCallsHandler(starter OutboundStarter, viewer ConversationViewer, logger *logging.Logger) *CallsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CallsHandler{starter: starter, viewer: viewer, logger: logger}
}

// OutboundCallRequest accepts both "phone" and the older "phone_number".
type OutboundCallRequest struct {
	Phone       string         `json:"phone"`
	PhoneNumber string         `json:"phone_number"`
	Prompt      string         `json:"prompt"`
	Locale      string         `json:"locale"`
	Metadata    map[string]any `json:"metadata"`
}

func (r OutboundCallRequest) phone() string {
	if p := strings.TrimSpace(r.Phone); p != "" {
		return p
	}
	return strings.TrimSpace(r.PhoneNumber)
}

// StartOutbound handles POST /calls/outbound.
func (h *CallsHandler) StartOutbound(w http.ResponseWriter, r *http.Request) {
	if h.starter == nil {
		jsonError(w, "outbound calling not configured", http.StatusServiceUnavailable)
		return
	}
	var req OutboundCallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	phone := req.phone()
	if phone == "" {
		jsonError(w, "phone is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	log := h.logger.With("phone", logging.MaskPhone(phone))
	log.Info("outbound call requested")

	result, err := h.starter.Start(r.Context(), conversation.StartRequest{
		Phone:    phone,
		Prompt:   req.Prompt,
		Locale:   req.Locale,
		Metadata: req.Metadata,
	})
	if err != nil {
		status := statusForError(err)
		log.Error("outbound call failed", "error", err, "status", status)
		body := map[string]any{"error": errorCode(err)}
		if result != nil && result.ConversationID != 0 {
			body["conversationId"] = result.ConversationID
		}
		writeJSON(w, status, body)
		return
	}
	log.Info("outbound call placed", "conversation_id", result.ConversationID, "call_handle", result.CallHandle)
	writeJSON(w, http.StatusOK, result)
}

// GetConversation handles GET /conversations/{id}.
func (h *CallsHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "invalid conversation id", http.StatusBadRequest)
		return
	}
	view, err := h.viewer.View(r.Context(), id)
	if errors.Is(err, conversation.ErrConversationNotFound) {
		jsonError(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("conversation lookup failed", "conversation_id", id, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
