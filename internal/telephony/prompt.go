package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go/twiml"

	"github.com/wolfman30/voice-agent/internal/capability"
	"github.com/wolfman30/voice-agent/internal/conversation"
)

// PromptRenderer turns an outbound prompt into call instructions (TwiML or
// TeXML, which share a dialect).
type PromptRenderer interface {
	Render(ctx context.Context, req conversation.CallRequest) (string, error)
}

// TwiMLSynthesizer speaks the prompt with the carrier's built-in TTS.
type TwiMLSynthesizer struct {
	voice string
}

func NewTwiMLSynthesizer(voice string) *TwiMLSynthesizer {
	return &TwiMLSynthesizer{voice: voice}
}

func (s *TwiMLSynthesizer) Render(_ context.Context, req conversation.CallRequest) (string, error) {
	say := &twiml.VoiceSay{
		Message: strings.TrimSpace(req.Prompt),
		Voice:   s.voice,
	}
	if req.Locale != "" {
		say.Language = req.Locale
	}
	doc, err := twiml.Voice([]twiml.Element{say})
	if err != nil {
		return "", fmt.Errorf("telephony: render twiml: %w", err)
	}
	return doc, nil
}

// AudioPublisher stores synthesized audio and returns a URL the carrier can
// fetch. *archive.Store satisfies it.
type AudioPublisher interface {
	PublishAudio(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsConfig configures ElevenLabsSynthesizer.
type ElevenLabsConfig struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	BaseURL    string
	HTTPClient *http.Client
	Publisher  AudioPublisher
}

// ElevenLabsSynthesizer renders the prompt to audio, publishes it and plays
// the resulting URL.
type ElevenLabsSynthesizer struct {
	apiKey     string
	voiceID    string
	modelID    string
	baseURL    string
	httpClient *http.Client
	publisher  AudioPublisher
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) (*ElevenLabsSynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, capability.Unsupported("tts", "elevenlabs", "ELEVEN_API_KEY not set")
	}
	if cfg.Publisher == nil {
		return nil, capability.Unsupported("tts", "elevenlabs", "ARCHIVE_BUCKET required to host prompt audio")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultElevenLabsBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ElevenLabsSynthesizer{
		apiKey:     cfg.APIKey,
		voiceID:    cfg.VoiceID,
		modelID:    cfg.ModelID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		publisher:  cfg.Publisher,
	}, nil
}

// Synthesize returns MPEG audio for text.
func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"text": text, "model_id": s.modelID})
	if err != nil {
		return nil, fmt.Errorf("telephony: elevenlabs marshal: %w", err)
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telephony: elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telephony: elevenlabs http: %w", err)
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("telephony: elevenlabs read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telephony: elevenlabs returned %d: %s", resp.StatusCode, truncate(string(audio), 256))
	}
	return audio, nil
}

func (s *ElevenLabsSynthesizer) Render(ctx context.Context, req conversation.CallRequest) (string, error) {
	audio, err := s.Synthesize(ctx, strings.TrimSpace(req.Prompt))
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("prompts/%d/%d.mp3", req.ConversationID, time.Now().UnixNano())
	audioURL, err := s.publisher.PublishAudio(ctx, key, audio, "audio/mpeg")
	if err != nil {
		return "", fmt.Errorf("telephony: publish prompt audio: %w", err)
	}
	doc, err := twiml.Voice([]twiml.Element{&twiml.VoicePlay{Url: audioURL}})
	if err != nil {
		return "", fmt.Errorf("telephony: render twiml: %w", err)
	}
	return doc, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
