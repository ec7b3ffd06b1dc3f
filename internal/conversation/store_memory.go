package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wolfman30/voice-agent/internal/idempotency"
)

// MemoryStore is an in-process Store used when DATABASE_URL is unset and in
// tests. Sessions hold the store lock for their whole duration, so they are
// serialized, and roll back by restoring a snapshot.
type MemoryStore struct {
	mu            sync.Mutex
	guard         *idempotency.MemoryGuard
	conversations map[int64]Conversation
	byExternalID  map[string]int64
	tickets       map[int64]Ticket
	nextConvID    int64
	nextTicketID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guard:         idempotency.NewMemoryGuard(),
		conversations: make(map[int64]Conversation),
		byExternalID:  make(map[string]int64),
		tickets:       make(map[int64]Ticket),
	}
}

// Guard exposes the processed-request set for duplicate pre-checks.
func (s *MemoryStore) Guard() *idempotency.MemoryGuard {
	return s.guard
}

type memorySnapshot struct {
	conversations map[int64]Conversation
	byExternalID  map[string]int64
	tickets       map[int64]Ticket
	nextConvID    int64
	nextTicketID  int64
}

func (s *MemoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		conversations: make(map[int64]Conversation, len(s.conversations)),
		byExternalID:  make(map[string]int64, len(s.byExternalID)),
		tickets:       make(map[int64]Ticket, len(s.tickets)),
		nextConvID:    s.nextConvID,
		nextTicketID:  s.nextTicketID,
	}
	for k, v := range s.conversations {
		snap.conversations[k] = v.Clone()
	}
	for k, v := range s.byExternalID {
		snap.byExternalID[k] = v
	}
	for k, v := range s.tickets {
		snap.tickets[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.conversations = snap.conversations
	s.byExternalID = snap.byExternalID
	s.tickets = snap.tickets
	s.nextConvID = snap.nextConvID
	s.nextTicketID = snap.nextTicketID
}

func (s *MemoryStore) RunSession(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	sess := &memorySession{store: s}
	if err := fn(ctx, sess); err != nil {
		s.restore(snap)
		for _, id := range sess.marked {
			s.guard.Forget(id)
		}
		return err
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (s *MemoryStore) TicketsForConversation(_ context.Context, conversationID int64) ([]Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Ticket
	for _, t := range s.tickets {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memorySession runs with store.mu held.
type memorySession struct {
	store  *MemoryStore
	marked []string
}

func (m *memorySession) MarkProcessed(ctx context.Context, requestID string) error {
	if err := m.store.guard.MarkProcessed(ctx, requestID); err != nil {
		return err
	}
	m.marked = append(m.marked, requestID)
	return nil
}

func (m *memorySession) ConversationByExternalID(_ context.Context, externalID string) (*Conversation, error) {
	id, ok := m.store.byExternalID[externalID]
	if !ok {
		return nil, nil
	}
	c := m.store.conversations[id].Clone()
	return &c, nil
}

func (m *memorySession) ConversationByID(_ context.Context, id int64) (*Conversation, error) {
	c, ok := m.store.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (m *memorySession) InsertConversation(_ context.Context, c *Conversation) (bool, error) {
	if c.ExternalID != "" {
		if _, taken := m.store.byExternalID[c.ExternalID]; taken {
			return false, nil
		}
	}
	m.store.nextConvID++
	c.ID = m.store.nextConvID
	m.store.conversations[c.ID] = c.Clone()
	if c.ExternalID != "" {
		m.store.byExternalID[c.ExternalID] = c.ID
	}
	return true, nil
}

func (m *memorySession) UpdateConversation(_ context.Context, c *Conversation) error {
	current, ok := m.store.conversations[c.ID]
	if !ok {
		return ErrConversationNotFound
	}
	if current.Version != c.Version {
		return fmt.Errorf("conversation: update %d: stale version %d", c.ID, c.Version)
	}
	if c.ExternalID != current.ExternalID {
		if c.ExternalID != "" {
			if owner, taken := m.store.byExternalID[c.ExternalID]; taken && owner != c.ID {
				return fmt.Errorf("conversation: external id %q already assigned", c.ExternalID)
			}
			m.store.byExternalID[c.ExternalID] = c.ID
		}
		if current.ExternalID != "" {
			delete(m.store.byExternalID, current.ExternalID)
		}
	}
	c.Version++
	m.store.conversations[c.ID] = c.Clone()
	return nil
}

func (m *memorySession) TicketForConversation(_ context.Context, conversationID int64) (*Ticket, error) {
	for _, t := range m.store.tickets {
		if t.ConversationID == conversationID {
			out := t
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memorySession) InsertTicket(_ context.Context, t *Ticket) error {
	for _, existing := range m.store.tickets {
		if existing.ConversationID == t.ConversationID {
			return fmt.Errorf("conversation: ticket for conversation %d already exists", t.ConversationID)
		}
	}
	m.store.nextTicketID++
	t.ID = m.store.nextTicketID
	m.store.tickets[t.ID] = *t
	return nil
}

func (m *memorySession) UpdateTicket(_ context.Context, t *Ticket) error {
	existing, ok := m.store.tickets[t.ID]
	if !ok {
		return fmt.Errorf("conversation: ticket %d not found", t.ID)
	}
	existing.Category = t.Category
	existing.UpdatedTS = t.UpdatedTS
	m.store.tickets[t.ID] = existing
	return nil
}
