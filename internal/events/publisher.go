package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// SQSAPI is the subset of the SQS client used by the publisher.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher forwards committed lifecycle changes to an SQS queue. It is
// a conversation.Listener: publish failures are logged, never returned.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	logger   *logging.Logger
}

var _ conversation.Listener = (*SQSPublisher)(nil)

func NewSQSPublisher(client SQSAPI, queueURL string, logger *logging.Logger) *SQSPublisher {
	if client == nil {
		panic("events: sqs client required")
	}
	if queueURL == "" {
		panic("events: queue url required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSPublisher{client: client, queueURL: queueURL, logger: logger}
}

// Publish sends one envelope. The conversation id is the message group so
// FIFO queues keep per-conversation order.
func (p *SQSPublisher) Publish(ctx context.Context, conversationID int64, correlationID string, evt Event) error {
	env, err := NewEnvelope(conversationID, correlationID, evt)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if strings.HasSuffix(p.queueURL, ".fifo") {
		input.MessageGroupId = aws.String(fmt.Sprintf("conversation-%d", conversationID))
		input.MessageDeduplicationId = aws.String(env.EventID.String())
	}
	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("events: send %s: %w", env.EventType, err)
	}
	return nil
}

func (p *SQSPublisher) ConversationClosed(ctx context.Context, c conversation.Conversation) {
	evt := ConversationClosedV1{
		ConversationID: c.ID,
		ExternalID:     c.ExternalID,
		Direction:      string(c.Direction),
		Locale:         c.Locale,
		Intents:        make([]string, 0, len(c.Intents)),
		StartedAt:      c.StartTS,
		EndedAt:        c.EndTS,
	}
	for _, l := range c.Intents {
		evt.Intents = append(evt.Intents, string(l))
	}
	if err := p.Publish(ctx, c.ID, c.ExternalID, evt); err != nil {
		p.logger.Error("lifecycle event not published", "conversation_id", c.ID, "error", err)
	}
}

func (p *SQSPublisher) TicketReconciled(ctx context.Context, c conversation.Conversation, outcome conversation.TicketOutcome) {
	var evt Event
	if outcome.Handoff() {
		evt = HandoffRequestedV1{ConversationID: c.ID, ExternalID: c.ExternalID, PhoneLast4: logging.PhoneLast4(c.Phone)}
	} else {
		evt = TicketReconciledV1{
			ConversationID: c.ID,
			TicketID:       outcome.TicketID,
			Kind:           string(outcome.Kind),
			Category:       string(outcome.Intent),
			Status:         string(outcome.Status),
		}
	}
	if err := p.Publish(ctx, c.ID, c.ExternalID, evt); err != nil {
		p.logger.Error("lifecycle event not published", "conversation_id", c.ID, "error", err)
	}
}

