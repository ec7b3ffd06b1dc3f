// Package telephony adapts voice vendors to the conversation pipeline:
// webhook normalization, signature checks, call placement and prompt audio.
package telephony

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wolfman30/voice-agent/internal/conversation"
)

const (
	VendorTwilio = "twilio"
	VendorVapi   = "vapi"
)

// Payload is a flattened webhook body. Form posts and JSON objects both
// reduce to string values keyed by the vendor's field names.
type Payload map[string]string

// FormPayload flattens a parsed form, keeping the first value per key.
func FormPayload(form url.Values) Payload {
	p := make(Payload, len(form))
	for k, v := range form {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

// JSONPayload flattens a JSON object. Scalar fields are kept as strings.
// When the body wraps the event in a "message" object (Vapi server
// messages) its fields are lifted, and a nested "call" object contributes
// its id and customer number.
func JSONPayload(body []byte) (Payload, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("telephony: decode webhook body: %w", err)
	}
	p := make(Payload)
	flatten(p, raw)
	if msg, ok := raw["message"].(map[string]any); ok {
		flatten(p, msg)
		raw = msg
	}
	if call, ok := raw["call"].(map[string]any); ok {
		if id, ok := call["id"].(string); ok {
			p.setDefault("call_id", id)
		}
		if customer, ok := call["customer"].(map[string]any); ok {
			if number, ok := customer["number"].(string); ok {
				p.setDefault("phone", number)
			}
		}
	}
	return p, nil
}

// EventPayload accepts the legacy {"event": {...}} envelope. A body with no
// envelope is treated as the event itself.
func EventPayload(body []byte) (Payload, error) {
	var envelope struct {
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("telephony: decode event envelope: %w", err)
	}
	if len(envelope.Event) == 0 || string(envelope.Event) == "null" {
		return JSONPayload(body)
	}
	return JSONPayload(envelope.Event)
}

func flatten(p Payload, raw map[string]any) {
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			p[k] = val
		case bool:
			p[k] = strconv.FormatBool(val)
		case float64:
			p[k] = strconv.FormatFloat(val, 'f', -1, 64)
		}
	}
}

func (p Payload) setDefault(key, value string) {
	if strings.TrimSpace(p[key]) == "" {
		p[key] = value
	}
}

// First returns the first non-blank value among keys.
func (p Payload) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(p[k]); v != "" {
			return v
		}
	}
	return ""
}

var twilioTerminalStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

// NormalizeTwilio maps a Twilio voice callback onto the internal event.
// Twilio stamps retried deliveries with I-Twilio-Idempotency-Token.
func NormalizeTwilio(p Payload, h http.Header) conversation.InboundEvent {
	status := strings.ToLower(p.First("CallStatus", "call_status"))
	return conversation.InboundEvent{
		Vendor:       VendorTwilio,
		RequestID:    requestID(p, h, "I-Twilio-Idempotency-Token"),
		Phone:        p.First("From", "from"),
		ExternalID:   p.First("CallSid", "call_sid"),
		RecordingURL: p.First("RecordingUrl", "recording_url"),
		Transcript:   p.First("TranscriptionText", "SpeechResult", "transcript"),
		Locale:       locale(p.First("Language")),
		Terminal:     twilioTerminalStatuses[status],
	}
}

// NormalizeVapi maps a Vapi server message onto the internal event.
func NormalizeVapi(p Payload, h http.Header) conversation.InboundEvent {
	status := strings.ToLower(p.First("status"))
	kind := strings.ToLower(p.First("type"))
	return conversation.InboundEvent{
		Vendor:       VendorVapi,
		RequestID:    requestID(p, h, "X-Vapi-Request-Id"),
		Phone:        p.First("from", "phone"),
		ExternalID:   p.First("call_id", "id"),
		RecordingURL: p.First("recordingUrl", "recording_url"),
		Transcript:   p.First("transcript"),
		Locale:       locale(p.First("language")),
		Terminal:     status == "ended" || kind == "end-of-call-report",
	}
}

func requestID(p Payload, h http.Header, vendorHeader string) string {
	if h != nil {
		if v := strings.TrimSpace(h.Get(vendorHeader)); v != "" {
			return v
		}
		if v := strings.TrimSpace(h.Get("Idempotency-Key")); v != "" {
			return v
		}
	}
	return p.First("requestId", "request_id", "RequestId")
}

func locale(v string) string {
	if v == "" {
		return conversation.DefaultLocale
	}
	return v
}

