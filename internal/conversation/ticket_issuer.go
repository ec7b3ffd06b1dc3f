package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/voice-agent/internal/intent"
)

// TicketOutcomeKind describes what reconciliation did.
type TicketOutcomeKind string

const (
	TicketCreated TicketOutcomeKind = "created"
	TicketUpdated TicketOutcomeKind = "updated"
	TicketHandoff TicketOutcomeKind = "handoff"
)

// TicketOutcome is reported upstream after reconciliation.
type TicketOutcome struct {
	Kind     TicketOutcomeKind `json:"kind"`
	TicketID int64             `json:"ticketId,omitempty"`
	Intent   intent.Label      `json:"intent"`
	Status   TicketStatus      `json:"status,omitempty"`
}

// Handoff reports whether the caller was routed to a human.
func (o TicketOutcome) Handoff() bool { return o.Kind == TicketHandoff }

// TicketIssuer keeps at most one ticket per conversation.
type TicketIssuer struct {
	now func() time.Time
}

func NewTicketIssuer(now func() time.Time) *TicketIssuer {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TicketIssuer{now: now}
}

// Reconcile creates or updates the conversation's ticket for label.
// LIVE_AGENT never touches tickets. An existing ticket takes the newest
// category and keeps its status, so a RESOLVED ticket stays RESOLVED.
func (t *TicketIssuer) Reconcile(ctx context.Context, s TicketSession, conversationID int64, label intent.Label) (TicketOutcome, error) {
	if label == intent.LiveAgent {
		return TicketOutcome{Kind: TicketHandoff, Intent: label}, nil
	}

	now := t.now()
	existing, err := s.TicketForConversation(ctx, conversationID)
	if err != nil {
		return TicketOutcome{}, fmt.Errorf("conversation: reconcile ticket: %w", err)
	}
	if existing != nil {
		existing.Category = label
		existing.UpdatedTS = now
		if err := s.UpdateTicket(ctx, existing); err != nil {
			return TicketOutcome{}, fmt.Errorf("conversation: reconcile ticket: %w", err)
		}
		return TicketOutcome{Kind: TicketUpdated, TicketID: existing.ID, Intent: label, Status: existing.Status}, nil
	}

	ticket := &Ticket{
		ConversationID: conversationID,
		Category:       label,
		Status:         TicketOpen,
		CreatedTS:      now,
		UpdatedTS:      now,
	}
	if err := s.InsertTicket(ctx, ticket); err != nil {
		return TicketOutcome{}, fmt.Errorf("conversation: reconcile ticket: %w", err)
	}
	return TicketOutcome{Kind: TicketCreated, TicketID: ticket.ID, Intent: label, Status: ticket.Status}, nil
}
