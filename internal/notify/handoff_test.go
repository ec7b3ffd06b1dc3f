package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/intent"
)

type recordingSender struct {
	sent []EmailMessage
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return nil
}

func TestHandoffNotifier(t *testing.T) {
	sender := &recordingSender{}
	n := NewHandoffNotifier(sender, " ops@example.com ", nil)
	c := conversation.Conversation{ID: 5, ExternalID: "CA5", Phone: "+15551234567", Direction: conversation.DirectionInbound, Transcript: "let me talk to a human\n"}

	n.ConversationClosed(context.Background(), c)
	n.TicketReconciled(context.Background(), c, conversation.TicketOutcome{Kind: conversation.TicketCreated, Intent: intent.ResolveIssue, Status: conversation.TicketOpen})
	assert.Empty(t, sender.sent)

	n.TicketReconciled(context.Background(), c, conversation.TicketOutcome{Kind: conversation.TicketHandoff, Intent: intent.LiveAgent})
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ops@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "live agent")
	assert.Contains(t, sender.sent[0].Body, "Call: CA5")
	assert.Contains(t, sender.sent[0].Body, "let me talk to a human")
	assert.Equal(t, map[string]string{"conversation_id": "5", "kind": "handoff"}, sender.sent[0].Tags)

	n.TicketReconciled(context.Background(), c, conversation.TicketOutcome{Kind: conversation.TicketUpdated, TicketID: 2, Intent: intent.ResolveIssue, Status: conversation.TicketEscalated})
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[1].Subject, "Escalated ticket 2")
	assert.Equal(t, "escalation", sender.sent[1].Tags["kind"])
}

func TestHandoffBodyRedactsCallerDetails(t *testing.T) {
	sender := &recordingSender{}
	n := NewHandoffNotifier(sender, "ops@example.com", nil)
	c := conversation.Conversation{
		ID:         6,
		Phone:      "+15551234567",
		Direction:  conversation.DirectionInbound,
		Transcript: "agent please, call me at 555-987-6543 or mail jo@example.com\n",
	}

	n.TicketReconciled(context.Background(), c, conversation.TicketOutcome{Kind: conversation.TicketHandoff, Intent: intent.LiveAgent})
	require.Len(t, sender.sent, 1)
	body := sender.sent[0].Body
	assert.Contains(t, body, "Caller: ********4567")
	assert.NotContains(t, body, "+15551234567")
	assert.Contains(t, body, "call me at [PHONE] or mail [EMAIL]")
	assert.NotContains(t, body, "555-987-6543")
	assert.NotContains(t, body, "jo@example.com")
}

func TestHandoffNotifierWithoutRecipient(t *testing.T) {
	sender := &recordingSender{}
	NewHandoffNotifier(sender, "", nil).TicketReconciled(context.Background(), conversation.Conversation{}, conversation.TicketOutcome{Kind: conversation.TicketHandoff})
	assert.Empty(t, sender.sent)
}
