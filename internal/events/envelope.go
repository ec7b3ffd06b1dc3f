// Package events publishes conversation lifecycle events as versioned
// envelopes for downstream consumers.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies this service in every envelope.
const Source = "voice-agent"

// Event is a lifecycle payload. Names end in ".v<N>" so consumers can
// switch on schema version without decoding the payload.
type Event interface {
	EventType() string
}

// Envelope is the wire shape placed on the lifecycle queue.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	Source        string          `json:"source"`
	Aggregate     string          `json:"aggregate"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type EnvelopeOption func(*Envelope)

// WithEventID pins the event id. uuid.Nil is ignored.
func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

// WithOccurredAt pins the event time. The zero time is ignored.
func WithOccurredAt(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.OccurredAt = ts.UTC()
		}
	}
}

var (
	errNoConversation = errors.New("events: conversation id is required")
	errNilEvent       = errors.New("events: event is required")
	errUnversioned    = errors.New("events: event type must end in .v<N>")

	now = time.Now
)

// ConversationAggregate is the aggregate key for a conversation.
func ConversationAggregate(id int64) string {
	return "conversation:" + strconv.FormatInt(id, 10)
}

// NewEnvelope wraps evt for conversationID. correlationID is usually the
// vendor call id so consumers can join events from one call.
func NewEnvelope(conversationID int64, correlationID string, evt Event, opts ...EnvelopeOption) (Envelope, error) {
	if conversationID <= 0 {
		return Envelope{}, errNoConversation
	}
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	eventType := strings.TrimSpace(evt.EventType())
	version, err := schemaVersion(eventType)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %q", err, eventType)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	env := Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		SchemaVersion: version,
		Source:        Source,
		Aggregate:     ConversationAggregate(conversationID),
		OccurredAt:    now().UTC(),
		CorrelationID: strings.TrimSpace(correlationID),
		Payload:       payload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

func schemaVersion(eventType string) (int, error) {
	i := strings.LastIndex(eventType, ".v")
	if i <= 0 {
		return 0, errUnversioned
	}
	v, err := strconv.Atoi(eventType[i+2:])
	if err != nil || v < 1 {
		return 0, errUnversioned
	}
	return v, nil
}
