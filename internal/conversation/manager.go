package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/voice-agent/internal/idempotency"
	"github.com/wolfman30/voice-agent/internal/intent"
	"github.com/wolfman30/voice-agent/internal/transcription"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

var tracer = otel.Tracer("voice-agent.conversation")

// TranscriptResolver is satisfied by *transcription.Orchestrator.
type TranscriptResolver interface {
	Resolve(ctx context.Context, src transcription.Source) (string, error)
}

// IntentClassifier is satisfied by *intent.Adapter.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (intent.Label, error)
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Store       Store
	Guard       idempotency.Guard
	Transcripts TranscriptResolver
	Classifier  IntentClassifier
	Tickets     *TicketIssuer
	Listeners   []Listener
	Metrics     Metrics
	Logger      *logging.Logger
	Now         func() time.Time
}

// Manager owns the conversation state machine and sequences inbound events
// through transcription, classification and ticket reconciliation.
type Manager struct {
	store       Store
	guard       idempotency.Guard
	transcripts TranscriptResolver
	classifier  IntentClassifier
	tickets     *TicketIssuer
	listeners   []Listener
	metrics     Metrics
	logger      *logging.Logger
	now         func() time.Time
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Store == nil {
		panic("conversation: store required")
	}
	if cfg.Guard == nil {
		panic("conversation: idempotency guard required")
	}
	if cfg.Transcripts == nil || cfg.Classifier == nil {
		panic("conversation: transcript resolver and classifier required")
	}
	m := &Manager{
		store:       cfg.Store,
		guard:       cfg.Guard,
		transcripts: cfg.Transcripts,
		classifier:  cfg.Classifier,
		tickets:     cfg.Tickets,
		listeners:   cfg.Listeners,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if m.metrics == nil {
		m.metrics = nopMetrics{}
	}
	if m.logger == nil {
		m.logger = logging.Default()
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	if m.tickets == nil {
		m.tickets = NewTicketIssuer(m.now)
	}
	return m
}

// FindOrCreate returns the conversation keyed by p.ExternalID, creating it
// when absent. Without an external id a new conversation is always created.
// The returned row stays locked for the rest of the session.
func (m *Manager) FindOrCreate(ctx context.Context, s Session, p NewConversation) (*Conversation, error) {
	if p.ExternalID != "" {
		existing, err := s.ConversationByExternalID(ctx, p.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("conversation: find or create: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	} else if p.Direction == DirectionInbound {
		m.logger.Warn("inbound conversation without external id; creating unconditionally", "phone", logging.MaskPhone(p.Phone))
	}

	locale := strings.TrimSpace(p.Locale)
	if locale == "" {
		locale = DefaultLocale
	}
	c := &Conversation{
		Phone:      p.Phone,
		Direction:  p.Direction,
		Locale:     locale,
		ExternalID: p.ExternalID,
		StartTS:    m.now(),
		Intents:    []intent.Label{},
		Status:     StatusOpen,
	}
	inserted, err := s.InsertConversation(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("conversation: find or create: %w", err)
	}
	if inserted {
		return c, nil
	}

	// Lost the insert race for this external id; the winner has committed.
	existing, err := s.ConversationByExternalID(ctx, p.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("conversation: find or create: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("conversation: find or create: external id %q conflicted but no row found", p.ExternalID)
	}
	return existing, nil
}

// AppendTranscript concatenates text plus one trailing separator and
// persists the result. Calling it twice appends twice.
func (m *Manager) AppendTranscript(ctx context.Context, s Session, c *Conversation, text string) error {
	c.Transcript += text + TranscriptSeparator
	if err := s.UpdateConversation(ctx, c); err != nil {
		return fmt.Errorf("conversation: append transcript: %w", err)
	}
	return nil
}

// Close marks the conversation CLOSED, stamps end_ts and replaces intents.
// Closing an already CLOSED conversation refreshes end_ts (last write wins).
func (m *Manager) Close(ctx context.Context, s Session, c *Conversation, intents []intent.Label) error {
	end := m.now()
	if end.Before(c.StartTS) {
		end = c.StartTS
	}
	if c.Status == StatusClosed {
		m.logger.Debug("closing already closed conversation", "conversation_id", c.ID)
	}
	c.EndTS = &end
	c.Status = StatusClosed
	c.Intents = append([]intent.Label{}, intents...)
	if err := s.UpdateConversation(ctx, c); err != nil {
		return fmt.Errorf("conversation: close: %w", err)
	}
	return nil
}

// View loads a conversation with its tickets.
func (m *Manager) View(ctx context.Context, id int64) (*View, error) {
	c, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tickets, err := m.store.TicketsForConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewView(c, tickets), nil
}

func (m *Manager) notifyClosed(ctx context.Context, c Conversation) {
	for _, l := range m.listeners {
		l.ConversationClosed(ctx, c)
	}
}

func (m *Manager) notifyTicket(ctx context.Context, c Conversation, outcome TicketOutcome) {
	for _, l := range m.listeners {
		l.TicketReconciled(ctx, c, outcome)
	}
}

