package transcription

import (
	"bytes"
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/voice-agent/internal/capability"
)

type audioTranscriptionAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// WhisperTranscriber transcribes through the OpenAI audio API.
type WhisperTranscriber struct {
	api   audioTranscriptionAPI
	model string
}

type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewWhisperTranscriber(cfg WhisperConfig) (*WhisperTranscriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, capability.Unsupported("stt", "openai", "OPENAI_API_KEY not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{api: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	name := audio.Filename
	if name == "" {
		name = "recording.wav"
	}
	resp, err := w.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: name,
		Reader:   bytes.NewReader(audio.Data),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
