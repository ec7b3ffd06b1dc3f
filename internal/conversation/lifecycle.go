package conversation

import (
	"context"
	"time"
)

// Listener observes committed lifecycle changes. Implementations run after
// the session commits and must not fail the pipeline; they log their own
// errors.
type Listener interface {
	ConversationClosed(ctx context.Context, c Conversation)
	TicketReconciled(ctx context.Context, c Conversation, outcome TicketOutcome)
}

// Metrics receives pipeline measurements. *metrics.PipelineMetrics satisfies it.
type Metrics interface {
	ObserveWebhook(vendor, outcome string)
	ObservePipeline(vendor, result string, d time.Duration)
	ObserveTicket(kind string)
	ObservePlacement(provider, result string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveWebhook(string, string)                  {}
func (nopMetrics) ObservePipeline(string, string, time.Duration) {}
func (nopMetrics) ObserveTicket(string)                           {}
func (nopMetrics) ObservePlacement(string, string)                {}
