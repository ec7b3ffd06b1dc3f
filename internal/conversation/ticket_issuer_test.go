package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-agent/internal/intent"
)

func reconcile(t *testing.T, store *MemoryStore, issuer *TicketIssuer, convID int64, label intent.Label) TicketOutcome {
	t.Helper()
	var out TicketOutcome
	require.NoError(t, store.RunSession(context.Background(), func(ctx context.Context, s Session) error {
		var err error
		out, err = issuer.Reconcile(ctx, s, convID, label)
		return err
	}))
	return out
}

func TestReconcileCreatesThenUpdates(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewTicketIssuer(func() time.Time { now = now.Add(time.Minute); return now })

	created := reconcile(t, store, issuer, 7, intent.ScheduleCallback)
	assert.Equal(t, TicketCreated, created.Kind)
	assert.Equal(t, TicketOpen, created.Status)

	updated := reconcile(t, store, issuer, 7, intent.ResolveIssue)
	assert.Equal(t, TicketUpdated, updated.Kind)
	assert.Equal(t, created.TicketID, updated.TicketID)

	tickets, err := store.TicketsForConversation(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, intent.ResolveIssue, tickets[0].Category)
	assert.True(t, tickets[0].UpdatedTS.After(tickets[0].CreatedTS))
}

func TestReconcileDoesNotReopenResolvedTicket(t *testing.T) {
	store := NewMemoryStore()
	issuer := NewTicketIssuer(nil)
	created := reconcile(t, store, issuer, 3, intent.ResolveIssue)

	resolvedAt := time.Now().UTC()
	store.mu.Lock()
	tk := store.tickets[created.TicketID]
	tk.Status = TicketResolved
	tk.ResolvedTS = &resolvedAt
	store.tickets[created.TicketID] = tk
	store.mu.Unlock()

	out := reconcile(t, store, issuer, 3, intent.ScheduleCallback)
	assert.Equal(t, TicketUpdated, out.Kind)
	assert.Equal(t, TicketResolved, out.Status)

	tickets, err := store.TicketsForConversation(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, TicketResolved, tickets[0].Status)
	assert.Equal(t, intent.ScheduleCallback, tickets[0].Category)
}

func TestReconcileLiveAgentIsHandoff(t *testing.T) {
	store := NewMemoryStore()
	out := reconcile(t, store, NewTicketIssuer(nil), 5, intent.LiveAgent)
	assert.True(t, out.Handoff())
	assert.Zero(t, out.TicketID)
	tickets, err := store.TicketsForConversation(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}
