package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/voice-agent/pkg/logging"
)

// CallRequest is what a CallPlacer needs to dial out.
type CallRequest struct {
	ConversationID int64
	To             string
	Prompt         string
	Locale         string
	Metadata       map[string]any
}

// CallPlacer is the outbound call placement capability. It returns the
// provider's call identifier.
type CallPlacer interface {
	PlaceCall(ctx context.Context, req CallRequest) (string, error)
}

// CallAttempt is one placement try, recorded for audit.
type CallAttempt struct {
	ConversationID int64
	Attempt        int
	Provider       string
	Phone          string
	CallHandle     string
	Error          string
	At             time.Time
}

// AttemptRecorder persists placement attempts. Failures are logged only.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a CallAttempt) error
}

// StartRequest is the outbound API input.
type StartRequest struct {
	Phone    string
	Prompt   string
	Locale   string
	Metadata map[string]any
}

// StartResult is returned to the caller. ConversationID is set even when
// placement fails.
type StartResult struct {
	ConversationID int64  `json:"conversationId"`
	CallHandle     string `json:"callHandle"`
}

// InitiatorConfig wires an OutboundInitiator.
type InitiatorConfig struct {
	Manager  *Manager
	Placer   CallPlacer
	Provider string
	Policy   RetryPolicy
	Attempts AttemptRecorder
	Timeout  time.Duration
	Logger   *logging.Logger
}

// OutboundInitiator opens an OUTBOUND conversation and places the call.
type OutboundInitiator struct {
	manager  *Manager
	placer   CallPlacer
	provider string
	policy   RetryPolicy
	attempts AttemptRecorder
	timeout  time.Duration
	logger   *logging.Logger
}

func NewOutboundInitiator(cfg InitiatorConfig) *OutboundInitiator {
	if cfg.Manager == nil || cfg.Placer == nil {
		panic("conversation: manager and call placer required")
	}
	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultPlacementPolicy
	}
	logger := cfg.Logger
	if logger == nil {
		logger = cfg.Manager.logger
	}
	return &OutboundInitiator{
		manager:  cfg.Manager,
		placer:   cfg.Placer,
		provider: cfg.Provider,
		policy:   policy,
		attempts: cfg.Attempts,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Start creates the conversation row, then tries placement under the retry
// policy. When every attempt fails the error wraps ErrCallPlacementFailed
// and the last provider error, and the OPEN conversation is left in place.
// On success the call handle is stored as the conversation's external id so
// the vendor's completion webhook lands on the same conversation.
func (o *OutboundInitiator) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	ctx, span := tracer.Start(ctx, "conversation.start_outbound")
	defer span.End()
	span.SetAttributes(attribute.String("call.provider", o.provider))

	phone := strings.TrimSpace(req.Phone)
	var conv *Conversation
	err := o.manager.store.RunSession(ctx, func(ctx context.Context, s Session) error {
		c, err := o.manager.FindOrCreate(ctx, s, NewConversation{
			Phone:     phone,
			Direction: DirectionOutbound,
			Locale:    req.Locale,
		})
		conv = c
		return err
	})
	if err != nil {
		return nil, err
	}
	result := &StartResult{ConversationID: conv.ID}
	log := o.logger.ForConversation(conv.ID).With("phone", logging.MaskPhone(phone), "provider", o.provider)
	span.SetAttributes(attribute.Int64("conversation.id", conv.ID))

	callReq := CallRequest{
		ConversationID: conv.ID,
		To:             phone,
		Prompt:         req.Prompt,
		Locale:         conv.Locale,
		Metadata:       req.Metadata,
	}
	attempts, err := o.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		handle, err := o.place(ctx, callReq)
		o.record(ctx, log, CallAttempt{
			ConversationID: conv.ID,
			Attempt:        attempt,
			Provider:       o.provider,
			Phone:          phone,
			CallHandle:     handle,
			Error:          errString(err),
			At:             o.manager.now(),
		})
		if err != nil {
			o.manager.metrics.ObservePlacement(o.provider, "error")
			log.Warn("call placement attempt failed", "attempt", attempt, "error", err)
			return err
		}
		o.manager.metrics.ObservePlacement(o.provider, "ok")
		result.CallHandle = handle
		return nil
	})
	span.SetAttributes(attribute.Int("call.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "placement failed")
		log.Error("call placement failed", "attempts", attempts, "error", err)
		return result, fmt.Errorf("%w after %d attempts: %w", ErrCallPlacementFailed, attempts, err)
	}

	if err := o.correlate(ctx, conv.ID, result.CallHandle); err != nil {
		log.Warn("could not store call handle on conversation", "call_handle", result.CallHandle, "error", err)
	}
	log.Info("outbound call placed", "call_handle", result.CallHandle, "attempts", attempts)
	return result, nil
}

func (o *OutboundInitiator) place(ctx context.Context, req CallRequest) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return o.placer.PlaceCall(ctx, req)
}

func (o *OutboundInitiator) correlate(ctx context.Context, conversationID int64, handle string) error {
	if handle == "" {
		return nil
	}
	return o.manager.store.RunSession(ctx, func(ctx context.Context, s Session) error {
		c, err := s.ConversationByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if c.ExternalID != "" {
			return nil
		}
		c.ExternalID = handle
		return s.UpdateConversation(ctx, c)
	})
}

func (o *OutboundInitiator) record(ctx context.Context, log *logging.Logger, a CallAttempt) {
	if o.attempts == nil {
		return
	}
	if err := o.attempts.RecordAttempt(ctx, a); err != nil {
		log.Warn("call attempt not recorded", "attempt", a.Attempt, "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
