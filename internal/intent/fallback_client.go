package intent

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/voice-agent/pkg/logging"
)

// FallbackLLMClient sends a completion to a secondary backend when the
// primary one fails for reasons other than the caller giving up.
type FallbackLLMClient struct {
	primary       LLMClient
	secondary     LLMClient
	primaryName   string
	secondaryName string
	logger        *logging.Logger
}

// FallbackOption customises backend names used in logs and errors.
type FallbackOption func(*FallbackLLMClient)

// WithBackendNames labels the primary and secondary backends.
func WithBackendNames(primary, secondary string) FallbackOption {
	return func(c *FallbackLLMClient) {
		c.primaryName = primary
		c.secondaryName = secondary
	}
}

// NewFallbackLLMClient wraps primary. A nil secondary makes it a pass-through.
func NewFallbackLLMClient(primary, secondary LLMClient, logger *logging.Logger, opts ...FallbackOption) *FallbackLLMClient {
	if primary == nil {
		panic("intent: primary llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &FallbackLLMClient{
		primary:       primary,
		secondary:     secondary,
		primaryName:   "primary",
		secondaryName: "secondary",
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, primaryErr := c.primary.Complete(ctx, req)
	if primaryErr == nil {
		return resp, nil
	}
	if c.secondary == nil || ctx.Err() != nil {
		return LLMResponse{}, primaryErr
	}

	c.logger.Warn("classifier backend failed; trying next",
		"backend", c.primaryName,
		"next", c.secondaryName,
		"error", primaryErr,
	)
	resp, secondaryErr := c.secondary.Complete(ctx, req)
	if secondaryErr != nil {
		return LLMResponse{}, errors.Join(
			fmt.Errorf("%s: %w", c.primaryName, primaryErr),
			fmt.Errorf("%s: %w", c.secondaryName, secondaryErr),
		)
	}
	c.logger.Info("classifier answered by fallback backend", "backend", c.secondaryName)
	return resp, nil
}
