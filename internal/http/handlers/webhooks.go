package handlers

import (
	"context"
	"crypto/subtle"
	"io"
	"mime"
	"net/http"

	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/telephony"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// InboundPipeline is satisfied by *conversation.Manager.
type InboundPipeline interface {
	HandleInbound(ctx context.Context, ev conversation.InboundEvent) (*conversation.Outcome, error)
}

type webhookObserver interface {
	ObserveWebhook(vendor, outcome string)
}

// WebhookConfig wires a WebhookHandler.
type WebhookConfig struct {
	Pipeline InboundPipeline
	// TwilioValidator, when set, rejects Twilio posts without a valid
	// X-Twilio-Signature.
	TwilioValidator *telephony.TwilioSignatureValidator
	// PublicBaseURL is the externally visible origin Twilio signs against.
	PublicBaseURL string
	// VapiSecret, when set, must match the X-Vapi-Secret header.
	VapiSecret string
	Metrics    webhookObserver
	Logger     *logging.Logger
}

// WebhookHandler receives call events from the voice vendors and runs them
// through the inbound pipeline.
type WebhookHandler struct {
	pipeline      InboundPipeline
	validator     *telephony.TwilioSignatureValidator
	publicBaseURL string
	vapiSecret    string
	metrics       webhookObserver
	logger        *logging.Logger
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Pipeline == nil {
		panic("handlers: inbound pipeline required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		pipeline:      cfg.Pipeline,
		validator:     cfg.TwilioValidator,
		publicBaseURL: cfg.PublicBaseURL,
		vapiSecret:    cfg.VapiSecret,
		metrics:       cfg.Metrics,
		logger:        logger,
	}
}

// Twilio handles POST /webhooks/twilio. Twilio posts form-encoded bodies;
// JSON is accepted only when signature validation is off (local testing).
func (h *WebhookHandler) Twilio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var payload telephony.Payload
	if isJSON(r) {
		if h.validator != nil {
			h.reject(w, telephony.VendorTwilio, "unsigned json body")
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			jsonError(w, "failed to read body", http.StatusBadRequest)
			return
		}
		payload, err = telephony.JSONPayload(body)
		if err != nil {
			jsonError(w, "invalid json body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			jsonError(w, "invalid form body", http.StatusBadRequest)
			return
		}
		if h.validator != nil && !h.validator.Validate(r, telephony.AbsoluteURL(r, h.publicBaseURL)) {
			h.reject(w, telephony.VendorTwilio, "invalid twilio signature")
			return
		}
		payload = telephony.FormPayload(r.PostForm)
	}

	h.run(w, r, telephony.NormalizeTwilio(payload, r.Header))
}

// Vapi handles POST /webhooks/vapi server messages.
func (h *WebhookHandler) Vapi(w http.ResponseWriter, r *http.Request) {
	if h.vapiSecret != "" {
		got := r.Header.Get("X-Vapi-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.vapiSecret)) != 1 {
			h.reject(w, telephony.VendorVapi, "invalid vapi secret")
			return
		}
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	payload, err := telephony.JSONPayload(body)
	if err != nil {
		jsonError(w, "invalid json body", http.StatusBadRequest)
		return
	}
	h.run(w, r, telephony.NormalizeVapi(payload, r.Header))
}

// LegacyInbound handles POST /call/inbound with a {"event": {...}} body.
// The event uses Vapi field names.
func (h *WebhookHandler) LegacyInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	payload, err := telephony.EventPayload(body)
	if err != nil {
		jsonError(w, "invalid event body", http.StatusBadRequest)
		return
	}
	h.run(w, r, telephony.NormalizeVapi(payload, r.Header))
}

func (h *WebhookHandler) run(w http.ResponseWriter, r *http.Request, ev conversation.InboundEvent) {
	log := h.logger.With("vendor", ev.Vendor, "request_id", ev.RequestID, "phone", logging.MaskPhone(ev.Phone))
	log.Info("call webhook received", "external_id", ev.ExternalID, "terminal", ev.Terminal)

	outcome, err := h.pipeline.HandleInbound(r.Context(), ev)
	if err != nil {
		status := statusForError(err)
		log.Error("call webhook failed", "error", err, "status", status)
		writeJSON(w, status, map[string]string{
			"error": errorCode(err),
		})
		return
	}
	if outcome.Duplicate {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Status:             "processed",
		ConversationID:     outcome.ConversationID,
		ConversationStatus: string(outcome.Status),
		Intent:             string(outcome.Intent),
		Ticket:             outcome.Ticket,
		Handoff:            outcome.Handoff,
	})
}

func (h *WebhookHandler) reject(w http.ResponseWriter, vendor, reason string) {
	if h.metrics != nil {
		h.metrics.ObserveWebhook(vendor, "rejected")
	}
	h.logger.Warn("webhook rejected", "vendor", vendor, "reason", reason)
	jsonError(w, "unauthorized", http.StatusUnauthorized)
}

type webhookResponse struct {
	Status             string                      `json:"status"`
	ConversationID     int64                       `json:"conversationId"`
	ConversationStatus string                      `json:"conversationStatus"`
	Intent             string                      `json:"intent,omitempty"`
	Ticket             *conversation.TicketOutcome `json:"ticket,omitempty"`
	Handoff            bool                        `json:"handoff"`
}

func isJSON(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/json"
}
