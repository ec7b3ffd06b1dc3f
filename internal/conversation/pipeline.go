package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/voice-agent/internal/idempotency"
	"github.com/wolfman30/voice-agent/internal/intent"
	"github.com/wolfman30/voice-agent/internal/transcription"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// InboundEvent is the vendor-neutral shape of a call webhook.
type InboundEvent struct {
	Vendor       string
	RequestID    string
	Phone        string
	ExternalID   string
	RecordingURL string
	Transcript   string
	Locale       string
	// Terminal is set when the vendor reports the call has ended.
	Terminal bool
}

// Outcome is returned to the webhook boundary.
type Outcome struct {
	Duplicate      bool           `json:"duplicate"`
	ConversationID int64          `json:"conversationId,omitempty"`
	Status         Status         `json:"status,omitempty"`
	Intent         intent.Label   `json:"intent,omitempty"`
	Ticket         *TicketOutcome `json:"ticket,omitempty"`
	Handoff        bool           `json:"handoff"`
}

// HandleInbound runs one inbound event through the pipeline:
//
//  1. duplicate pre-check on the request id
//  2. transcript resolution, then classification of non-empty text
//  3. one store session that records the request id first, then finds or
//     creates the conversation, appends the transcript, closes it and
//     reconciles the ticket
//  4. listeners for committed changes
//
// A request id that loses the insert race in step 3 rolls the session back
// and is reported as a duplicate.
func (m *Manager) HandleInbound(ctx context.Context, ev InboundEvent) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "conversation.handle_inbound")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.vendor", ev.Vendor),
		attribute.String("call.external_id", ev.ExternalID),
	)

	start := time.Now()
	log := m.logger.With("vendor", ev.Vendor, "request_id", ev.RequestID, "external_id", ev.ExternalID)

	outcome, err := m.handleInbound(ctx, ev, log)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		m.metrics.ObserveWebhook(ev.Vendor, "error")
		m.metrics.ObservePipeline(ev.Vendor, "error", time.Since(start))
		log.Error("inbound event failed", "error", err)
	case outcome.Duplicate:
		m.metrics.ObserveWebhook(ev.Vendor, "duplicate")
		m.metrics.ObservePipeline(ev.Vendor, "duplicate", time.Since(start))
		log.Info("duplicate webhook ignored")
	default:
		m.metrics.ObserveWebhook(ev.Vendor, "processed")
		m.metrics.ObservePipeline(ev.Vendor, "processed", time.Since(start))
		span.SetAttributes(attribute.Int64("conversation.id", outcome.ConversationID))
	}
	return outcome, err
}

func (m *Manager) handleInbound(ctx context.Context, ev InboundEvent, log *logging.Logger) (*Outcome, error) {
	guarded := ev.RequestID != ""
	if !guarded {
		m.metrics.ObserveWebhook(ev.Vendor, "unguarded")
		log.Warn("webhook has no request id; duplicate protection disabled for this event")
	} else {
		dup, err := m.guard.IsDuplicate(ctx, ev.RequestID)
		if err != nil {
			return nil, err
		}
		if dup {
			return &Outcome{Duplicate: true}, nil
		}
	}

	text, err := m.transcripts.Resolve(ctx, transcription.Source{
		Transcript:   ev.Transcript,
		RecordingURL: ev.RecordingURL,
	})
	if err != nil {
		return nil, err
	}

	var (
		label      intent.Label
		classified bool
	)
	hasText := strings.TrimSpace(text) != ""
	if hasText {
		label, err = m.classifier.Classify(ctx, text)
		if err != nil {
			return nil, err
		}
		classified = true
	}

	var (
		committed Conversation
		closed    bool
		ticket    *TicketOutcome
	)
	err = m.store.RunSession(ctx, func(ctx context.Context, s Session) error {
		if guarded {
			if err := s.MarkProcessed(ctx, ev.RequestID); err != nil {
				return err
			}
		}

		c, err := m.FindOrCreate(ctx, s, NewConversation{
			Phone:      ev.Phone,
			Direction:  DirectionInbound,
			Locale:     ev.Locale,
			ExternalID: ev.ExternalID,
		})
		if err != nil {
			return err
		}

		if hasText {
			if c.Status == StatusOpen {
				if err := m.AppendTranscript(ctx, s, c, text); err != nil {
					return err
				}
			} else {
				log.Info("transcript not appended to closed conversation", "conversation_id", c.ID)
			}
		}

		if classified || ev.Terminal {
			intents := c.Intents
			if classified {
				intents = append(append([]intent.Label{}, c.Intents...), label)
			}
			if err := m.Close(ctx, s, c, intents); err != nil {
				return err
			}
			closed = true
		}

		if classified {
			out, err := m.tickets.Reconcile(ctx, s, c.ID, label)
			if err != nil {
				return err
			}
			ticket = &out
		}
		committed = c.Clone()
		return nil
	})
	if errors.Is(err, idempotency.ErrDuplicate) {
		return &Outcome{Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if r, ok := m.guard.(idempotency.Rememberer); ok && guarded {
		r.Remember(ctx, ev.RequestID)
	}
	if closed {
		m.notifyClosed(ctx, committed)
	}
	if ticket != nil {
		m.metrics.ObserveTicket(string(ticket.Kind))
		m.notifyTicket(ctx, committed, *ticket)
	}

	outcome := &Outcome{
		ConversationID: committed.ID,
		Status:         committed.Status,
		Ticket:         ticket,
	}
	if classified {
		outcome.Intent = label
		outcome.Handoff = label == intent.LiveAgent
	}
	log.Info("inbound event processed",
		"conversation_id", committed.ID,
		"status", committed.Status,
		"intent", outcome.Intent,
		"handoff", outcome.Handoff,
	)
	return outcome, nil
}
