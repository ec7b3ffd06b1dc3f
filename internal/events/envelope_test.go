package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawEvent string

func (e rawEvent) EventType() string { return string(e) }

func TestNewEnvelopeCarriesVersionedPayload(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	prev := now
	now = func() time.Time { return fixed }
	defer func() { now = prev }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := NewEnvelope(42, " CA42 ", TicketReconciledV1{
		ConversationID: 42,
		TicketID:       7,
		Kind:           "created",
		Category:       "SCHEDULE_CALLBACK",
		Status:         "OPEN",
	}, WithEventID(id))
	require.NoError(t, err)

	assert.Equal(t, id, env.EventID)
	assert.Equal(t, "ticket.reconciled.v1", env.EventType)
	assert.Equal(t, 1, env.SchemaVersion)
	assert.Equal(t, Source, env.Source)
	assert.Equal(t, "conversation:42", env.Aggregate)
	assert.Equal(t, "CA42", env.CorrelationID)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.True(t, env.OccurredAt.Equal(fixed))

	var payload TicketReconciledV1
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, int64(7), payload.TicketID)
	assert.Equal(t, "SCHEDULE_CALLBACK", payload.Category)
}

func TestNewEnvelopeValidation(t *testing.T) {
	_, err := NewEnvelope(0, "", ConversationClosedV1{})
	assert.True(t, errors.Is(err, errNoConversation))

	_, err = NewEnvelope(1, "", nil)
	assert.True(t, errors.Is(err, errNilEvent))

	for _, bad := range []string{"", "conversation.closed", "conversation.closed.v", "closed.v0", ".v1"} {
		_, err = NewEnvelope(1, "", rawEvent(bad))
		assert.ErrorIs(t, err, errUnversioned, bad)
	}

	env, err := NewEnvelope(1, "", rawEvent("call.recorded.v12"))
	require.NoError(t, err)
	assert.Equal(t, 12, env.SchemaVersion)
}

func TestWithOccurredAtIgnoresZero(t *testing.T) {
	env, err := NewEnvelope(1, "", ConversationClosedV1{}, WithOccurredAt(time.Time{}))
	require.NoError(t, err)
	assert.False(t, env.OccurredAt.IsZero())

	pinned := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	env, err = NewEnvelope(1, "", ConversationClosedV1{}, WithOccurredAt(pinned))
	require.NoError(t, err)
	assert.Equal(t, pinned, env.OccurredAt)
}
