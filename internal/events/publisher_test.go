package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/intent"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{}, f.err
}

func decodeEnvelope(t *testing.T, in *sqs.SendMessageInput) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(*in.MessageBody), &env))
	return env
}

func TestSQSPublisherConversationClosed(t *testing.T) {
	client := &fakeSQS{}
	pub := NewSQSPublisher(client, "https://sqs.us-east-1.amazonaws.com/1/lifecycle", nil)
	end := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)

	pub.ConversationClosed(context.Background(), conversation.Conversation{
		ID:         42,
		ExternalID: "call-42",
		Direction:  conversation.DirectionInbound,
		Intents:    []intent.Label{intent.ScheduleCallback},
		EndTS:      &end,
	})

	require.Len(t, client.inputs, 1)
	assert.Nil(t, client.inputs[0].MessageGroupId)
	env := decodeEnvelope(t, client.inputs[0])
	assert.Equal(t, "conversation.closed.v1", env.EventType)
	assert.Equal(t, "conversation:42", env.Aggregate)
	assert.Equal(t, "call-42", env.CorrelationID)

	var payload ConversationClosedV1
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, []string{"SCHEDULE_CALLBACK"}, payload.Intents)
}

func TestSQSPublisherTicketAndHandoff(t *testing.T) {
	client := &fakeSQS{}
	pub := NewSQSPublisher(client, "https://sqs.us-east-1.amazonaws.com/1/lifecycle.fifo", nil)
	c := conversation.Conversation{ID: 9, Phone: "+15551234567"}

	pub.TicketReconciled(context.Background(), c, conversation.TicketOutcome{Kind: conversation.TicketCreated, TicketID: 3, Intent: intent.ResolveIssue, Status: conversation.TicketOpen})
	pub.TicketReconciled(context.Background(), c, conversation.TicketOutcome{Kind: conversation.TicketHandoff, Intent: intent.LiveAgent})

	require.Len(t, client.inputs, 2)
	assert.Equal(t, "conversation-9", *client.inputs[0].MessageGroupId)
	assert.NotEmpty(t, *client.inputs[0].MessageDeduplicationId)
	assert.Equal(t, "ticket.reconciled.v1", decodeEnvelope(t, client.inputs[0]).EventType)

	handoff := decodeEnvelope(t, client.inputs[1])
	assert.Equal(t, "conversation.handoff_requested.v1", handoff.EventType)
	var payload HandoffRequestedV1
	require.NoError(t, json.Unmarshal(handoff.Payload, &payload))
	assert.Equal(t, "4567", payload.PhoneLast4)
}

func TestSQSPublisherSendFailureIsReturned(t *testing.T) {
	pub := NewSQSPublisher(&fakeSQS{err: errors.New("throttled")}, "https://q", nil)
	err := pub.Publish(context.Background(), 1, "", ConversationClosedV1{})
	assert.ErrorContains(t, err, "throttled")

	// listeners swallow it
	pub.ConversationClosed(context.Background(), conversation.Conversation{ID: 1})
}
