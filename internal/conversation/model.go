package conversation

import (
	"errors"
	"time"

	"github.com/wolfman30/voice-agent/internal/idempotency"
	"github.com/wolfman30/voice-agent/internal/intent"
)

// Direction of a call relative to us.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Status is the conversation lifecycle state. OPEN -> CLOSED only.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// TicketStatus is the support ticket state.
type TicketStatus string

const (
	TicketOpen      TicketStatus = "OPEN"
	TicketResolved  TicketStatus = "RESOLVED"
	TicketEscalated TicketStatus = "ESCALATED"
)

// DefaultLocale applies when a vendor omits the language.
const DefaultLocale = "en-US"

// TranscriptSeparator terminates every appended transcript chunk.
const TranscriptSeparator = "\n"

var (
	// ErrDuplicateWebhook marks a redelivered request id.
	ErrDuplicateWebhook = idempotency.ErrDuplicate
	// ErrConversationNotFound is returned for unknown conversation ids.
	ErrConversationNotFound = errors.New("conversation: not found")
	// ErrCallPlacementFailed is returned once every outbound attempt failed.
	ErrCallPlacementFailed = errors.New("conversation: call placement failed")
)

// Conversation is one phone interaction.
type Conversation struct {
	ID         int64
	Phone      string
	Direction  Direction
	Locale     string
	ExternalID string
	StartTS    time.Time
	EndTS      *time.Time
	Transcript string
	Intents    []intent.Label
	Status     Status
	Version    int64
}

// Clone returns a deep copy.
func (c Conversation) Clone() Conversation {
	out := c
	if c.EndTS != nil {
		end := *c.EndTS
		out.EndTS = &end
	}
	if c.Intents != nil {
		out.Intents = make([]intent.Label, len(c.Intents))
		copy(out.Intents, c.Intents)
	}
	return out
}

// Ticket is the support-routing record owned by exactly one conversation.
type Ticket struct {
	ID             int64
	ConversationID int64
	Category       intent.Label
	Status         TicketStatus
	CreatedTS      time.Time
	UpdatedTS      time.Time
	ResolvedTS     *time.Time
}

// NewConversation carries findOrCreate parameters.
type NewConversation struct {
	Phone      string
	Direction  Direction
	Locale     string
	ExternalID string
}

// View is the read shape returned by the conversations endpoint.
type View struct {
	ID         int64        `json:"id"`
	Phone      string       `json:"phone"`
	Direction  Direction    `json:"direction"`
	Locale     string       `json:"locale"`
	ExternalID string       `json:"external_id,omitempty"`
	StartTS    time.Time    `json:"start_ts"`
	EndTS      *time.Time   `json:"end_ts"`
	Transcript string       `json:"transcript"`
	Intents    []string     `json:"intents"`
	Status     Status       `json:"status"`
	Tickets    []TicketView `json:"tickets"`
}

type TicketView struct {
	ID             int64        `json:"id"`
	ConversationID int64        `json:"conversationId"`
	Category       string       `json:"category"`
	Status         TicketStatus `json:"status"`
	CreatedTS      time.Time    `json:"created_ts"`
	ResolvedTS     *time.Time   `json:"resolved_ts"`
}

// NewView assembles the read shape from a conversation and its tickets.
func NewView(c *Conversation, tickets []Ticket) *View {
	v := &View{
		ID:         c.ID,
		Phone:      c.Phone,
		Direction:  c.Direction,
		Locale:     c.Locale,
		ExternalID: c.ExternalID,
		StartTS:    c.StartTS,
		EndTS:      c.EndTS,
		Transcript: c.Transcript,
		Intents:    intent.Strings(c.Intents),
		Status:     c.Status,
		Tickets:    make([]TicketView, 0, len(tickets)),
	}
	for _, t := range tickets {
		v.Tickets = append(v.Tickets, TicketView{
			ID:             t.ID,
			ConversationID: t.ConversationID,
			Category:       string(t.Category),
			Status:         t.Status,
			CreatedTS:      t.CreatedTS,
			ResolvedTS:     t.ResolvedTS,
		})
	}
	return v
}
