package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/voice-agent/internal/capability"
	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/intent"
	"github.com/wolfman30/voice-agent/internal/transcription"
)

// maxBodyBytes caps webhook and API request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps pipeline error kinds to HTTP statuses. Upstream
// capability failures are 502 so vendors retry the delivery.
func statusForError(err error) int {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, transcription.ErrFetchFailed),
		errors.Is(err, transcription.ErrTranscriptionFailed),
		errors.Is(err, intent.ErrClassificationFailed),
		errors.Is(err, conversation.ErrCallPlacementFailed):
		return http.StatusBadGateway
	case errors.Is(err, capability.ErrUnsupportedProviderConfig):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine readable kind echoed in error bodies.
func errorCode(err error) string {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		return "conversation_not_found"
	case errors.Is(err, transcription.ErrFetchFailed):
		return "fetch_failed"
	case errors.Is(err, transcription.ErrTranscriptionFailed):
		return "transcription_failed"
	case errors.Is(err, intent.ErrClassificationFailed):
		return "classification_failed"
	case errors.Is(err, conversation.ErrCallPlacementFailed):
		return "call_placement_failed"
	case errors.Is(err, capability.ErrUnsupportedProviderConfig):
		return "unsupported_provider_config"
	default:
		return "internal_error"
	}
}
