package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfman30/voice-agent/internal/capability"
)

const defaultDeepgramBaseURL = "https://api.deepgram.com"

// DeepgramTranscriber calls Deepgram's pre-recorded listen endpoint.
type DeepgramTranscriber struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type DeepgramConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewDeepgramTranscriber(cfg DeepgramConfig) (*DeepgramTranscriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, capability.Unsupported("stt", "deepgram", "DEEPGRAM_API_KEY not set")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "general"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &DeepgramTranscriber{apiKey: cfg.APIKey, model: model, baseURL: baseURL, httpClient: client}, nil
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *DeepgramTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	endpoint := d.baseURL + "/v1/listen?" + url.Values{"model": {d.model}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio.Data))
	if err != nil {
		return "", fmt.Errorf("deepgram: build request: %w", err)
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("deepgram: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("deepgram: decode response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", fmt.Errorf("deepgram: response had no alternatives")
	}
	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}
