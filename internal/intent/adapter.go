package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/voice-agent/pkg/logging"
)

var tracer = otel.Tracer("voice-agent.intent")

// Classifier is the external classification capability. It returns the raw
// label text produced by the backing model.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Observer receives capability call measurements.
type Observer interface {
	ObserveCapability(capability, provider, result string, d time.Duration)
}

// Adapter normalizes and validates the output of a Classifier.
type Adapter struct {
	backend  Classifier
	provider string
	timeout  time.Duration
	observer Observer
	logger   *logging.Logger
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithTimeout bounds each backend call. A timeout surfaces as ErrClassificationFailed.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.timeout = d }
}

func WithObserver(o Observer) AdapterOption {
	return func(a *Adapter) { a.observer = o }
}

func WithLogger(l *logging.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter wraps backend. provider is used for telemetry only.
func NewAdapter(backend Classifier, provider string, opts ...AdapterOption) *Adapter {
	if backend == nil {
		panic("intent: classifier backend required")
	}
	a := &Adapter{
		backend:  backend,
		provider: provider,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider names the backend selected at construction.
func (a *Adapter) Provider() string { return a.provider }

// Classify returns the intent for text. Empty text is OTHER and never
// reaches the backend.
func (a *Adapter) Classify(ctx context.Context, text string) (Label, error) {
	if strings.TrimSpace(text) == "" {
		return Other, nil
	}

	ctx, span := tracer.Start(ctx, "intent.classify")
	defer span.End()
	span.SetAttributes(attribute.String("intent.provider", a.provider))

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := a.backend.Classify(ctx, text)
	if err != nil {
		a.observe("error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend failed")
		return "", fmt.Errorf("%w: %s: %w", ErrClassificationFailed, a.provider, err)
	}

	label, err := Parse(raw)
	if err != nil {
		a.observe("invalid", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown label")
		a.logger.Warn("classifier returned label outside vocabulary", "provider", a.provider, "raw", raw)
		return "", err
	}
	a.observe("ok", start)
	span.SetAttributes(attribute.String("intent.label", string(label)))
	return label, nil
}

func (a *Adapter) observe(result string, start time.Time) {
	if a.observer == nil {
		return
	}
	a.observer.ObserveCapability("classify", a.provider, result, time.Since(start))
}
