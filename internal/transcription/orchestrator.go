// Package transcription resolves the transcript text carried by, or
// recorded for, an inbound call event.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/voice-agent/pkg/logging"
)

var tracer = otel.Tracer("voice-agent.transcription")

var (
	// ErrFetchFailed covers non-2xx responses, transport errors and timeouts
	// while downloading recorded audio.
	ErrFetchFailed = errors.New("transcription: recording fetch failed")
	// ErrTranscriptionFailed covers failures of the speech-to-text capability.
	ErrTranscriptionFailed = errors.New("transcription: speech-to-text failed")
)

// maxRecordingBytes is the default download cap, about 55 minutes of 8 kHz 16-bit WAV.
const maxRecordingBytes = 50 << 20

// Source is the subset of an inbound event the orchestrator reads.
type Source struct {
	Transcript   string
	RecordingURL string
}

// Audio is a fetched recording.
type Audio struct {
	Data        []byte
	ContentType string
	Filename    string
	SourceURL   string
}

// Transcriber is the speech-to-text capability.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// RecordingSink receives fetched audio, for example to archive it. Errors are
// logged and never fail the resolution.
type RecordingSink interface {
	SaveRecording(ctx context.Context, audio Audio) error
}

// Observer receives capability call measurements.
type Observer interface {
	ObserveCapability(capability, provider, result string, d time.Duration)
}

// Credentials are attached as HTTP basic auth when fetching recordings.
// Twilio recording URLs require the account SID and auth token.
type Credentials struct {
	Username string
	Password string
}

// Config configures an Orchestrator.
type Config struct {
	Transcriber  Transcriber
	Provider     string
	HTTPClient   *http.Client
	FetchTimeout time.Duration
	STTTimeout   time.Duration
	Credentials  Credentials
	Sink         RecordingSink
	Observer     Observer
	Logger       *logging.Logger

	// MaxRecordingBytes caps a download; larger recordings fail the fetch.
	// Zero means 50 MiB.
	MaxRecordingBytes int64
}

// Orchestrator resolves transcripts.
type Orchestrator struct {
	stt          Transcriber
	provider     string
	httpClient   *http.Client
	fetchTimeout time.Duration
	sttTimeout   time.Duration
	creds        Credentials
	maxBytes     int64
	sink         RecordingSink
	observer     Observer
	logger       *logging.Logger
}

func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Transcriber == nil {
		panic("transcription: transcriber required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	maxBytes := cfg.MaxRecordingBytes
	if maxBytes <= 0 {
		maxBytes = maxRecordingBytes
	}
	return &Orchestrator{
		stt:          cfg.Transcriber,
		provider:     cfg.Provider,
		httpClient:   client,
		fetchTimeout: cfg.FetchTimeout,
		sttTimeout:   cfg.STTTimeout,
		creds:        cfg.Credentials,
		maxBytes:     maxBytes,
		sink:         cfg.Sink,
		observer:     cfg.Observer,
		logger:       logger,
	}
}

// Resolve returns the inline transcript unchanged when present, otherwise
// transcribes the referenced recording. With neither it returns "" and no
// error; callers treat that as nothing to classify.
func (o *Orchestrator) Resolve(ctx context.Context, src Source) (string, error) {
	if src.Transcript != "" {
		return src.Transcript, nil
	}
	if strings.TrimSpace(src.RecordingURL) == "" {
		return "", nil
	}

	ctx, span := tracer.Start(ctx, "transcription.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("stt.provider", o.provider))

	audio, err := o.fetch(ctx, src.RecordingURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("recording.bytes", len(audio.Data)))

	if o.sink != nil {
		if err := o.sink.SaveRecording(ctx, audio); err != nil {
			o.logger.Warn("recording archive failed", "error", err)
		}
	}

	text, err := o.transcribe(ctx, audio)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stt failed")
		return "", err
	}
	return text, nil
}

func (o *Orchestrator) fetch(ctx context.Context, url string) (Audio, error) {
	if o.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.fetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: build request: %w", ErrFetchFailed, err)
	}
	if o.creds.Username != "" {
		req.SetBasicAuth(o.creds.Username, o.creds.Password)
	}

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.observe("fetch", "error", start)
		return Audio{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		o.observe("fetch", "error", start)
		return Audio{}, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
	if err != nil {
		o.observe("fetch", "error", start)
		return Audio{}, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	if int64(len(data)) > o.maxBytes {
		o.observe("fetch", "too_large", start)
		return Audio{}, fmt.Errorf("%w: recording exceeds %d bytes", ErrFetchFailed, o.maxBytes)
	}
	o.observe("fetch", "ok", start)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/wav"
	}
	return Audio{
		Data:        data,
		ContentType: contentType,
		Filename:    recordingFilename(url, contentType),
		SourceURL:   url,
	}, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, audio Audio) (string, error) {
	if o.sttTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.sttTimeout)
		defer cancel()
	}
	start := time.Now()
	text, err := o.stt.Transcribe(ctx, audio)
	if err != nil {
		o.observe("transcribe", "error", start)
		return "", fmt.Errorf("%w: %s: %w", ErrTranscriptionFailed, o.provider, err)
	}
	o.observe("transcribe", "ok", start)
	return strings.TrimSpace(text), nil
}

func (o *Orchestrator) observe(capability, result string, start time.Time) {
	if o.observer == nil {
		return
	}
	o.observer.ObserveCapability(capability, o.provider, result, time.Since(start))
}

// recordingFilename derives a filename with an extension STT vendors accept.
func recordingFilename(url, contentType string) string {
	base := path.Base(strings.SplitN(url, "?", 2)[0])
	if base == "" || base == "." || base == "/" {
		base = "recording"
	}
	if path.Ext(base) != "" {
		return base
	}
	switch {
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return base + ".mp3"
	case strings.Contains(contentType, "ogg"):
		return base + ".ogg"
	default:
		return base + ".wav"
	}
}
