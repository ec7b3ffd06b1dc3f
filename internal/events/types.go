package events

import "time"

// ConversationClosedV1 is emitted once a conversation commits as CLOSED.
type ConversationClosedV1 struct {
	ConversationID int64      `json:"conversation_id"`
	ExternalID     string     `json:"external_id,omitempty"`
	Direction      string     `json:"direction"`
	Locale         string     `json:"locale"`
	Intents        []string   `json:"intents"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
}

func (ConversationClosedV1) EventType() string { return "conversation.closed.v1" }

// TicketReconciledV1 is emitted when a ticket is created or updated.
type TicketReconciledV1 struct {
	ConversationID int64  `json:"conversation_id"`
	TicketID       int64  `json:"ticket_id"`
	Kind           string `json:"kind"`
	Category       string `json:"category"`
	Status         string `json:"status"`
}

func (TicketReconciledV1) EventType() string { return "ticket.reconciled.v1" }

// HandoffRequestedV1 is emitted when the caller asked for a live agent.
type HandoffRequestedV1 struct {
	ConversationID int64  `json:"conversation_id"`
	ExternalID     string `json:"external_id,omitempty"`
	PhoneLast4     string `json:"phone_last4"`
}

func (HandoffRequestedV1) EventType() string { return "conversation.handoff_requested.v1" }
