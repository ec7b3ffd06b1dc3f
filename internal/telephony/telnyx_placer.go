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

	"github.com/wolfman30/voice-agent/internal/capability"
	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

const (
	defaultTelnyxBaseURL = "https://api.telnyx.com/v2"
	telnyxCallTimeout    = 15 * time.Second
)

// TelnyxPlacerConfig configures TelnyxCallPlacer.
type TelnyxPlacerConfig struct {
	// APIKey is the Telnyx API key (Bearer token).
	APIKey string
	// TexmlAppID is the TeXML application the call is placed under.
	TexmlAppID string
	From       string
	// StatusCallbackURL receives the completion webhook for placed calls.
	StatusCallbackURL string
	Renderer          PromptRenderer
	// BaseURL overrides the Telnyx API base URL (for testing).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// TelnyxCallPlacer dials out through the Telnyx TeXML calls API.
type TelnyxCallPlacer struct {
	apiKey      string
	texmlAppID  string
	from        string
	callbackURL string
	renderer    PromptRenderer
	baseURL     string
	httpClient  *http.Client
	logger      *logging.Logger
}

func NewTelnyxCallPlacer(cfg TelnyxPlacerConfig) (*TelnyxCallPlacer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, capability.Unsupported("call", "telnyx", "TELNYX_API_KEY not set")
	}
	if strings.TrimSpace(cfg.TexmlAppID) == "" {
		return nil, capability.Unsupported("call", "telnyx", "TELNYX_TEXML_APP_ID not set")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, capability.Unsupported("call", "telnyx", "TELNYX_FROM_NUMBER not set")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("telephony: prompt renderer required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTelnyxBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: telnyxCallTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxCallPlacer{
		apiKey:      cfg.APIKey,
		texmlAppID:  cfg.TexmlAppID,
		from:        cfg.From,
		callbackURL: cfg.StatusCallbackURL,
		renderer:    cfg.Renderer,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

type telnyxCallRequest struct {
	From           string `json:"From"`
	To             string `json:"To"`
	Texml          string `json:"Texml"`
	StatusCallback string `json:"StatusCallback,omitempty"`
}

type telnyxCallResponse struct {
	CallSid string `json:"call_sid"`
	Data    struct {
		CallControlID string `json:"call_control_id"`
		CallSid       string `json:"call_sid"`
	} `json:"data"`
}

func (r telnyxCallResponse) handle() string {
	for _, v := range []string{r.CallSid, r.Data.CallSid, r.Data.CallControlID} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *TelnyxCallPlacer) PlaceCall(ctx context.Context, req conversation.CallRequest) (string, error) {
	if req.To == "" {
		return "", fmt.Errorf("telephony: to number required")
	}
	doc, err := p.renderer.Render(ctx, req)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(telnyxCallRequest{
		From:           p.from,
		To:             req.To,
		Texml:          doc,
		StatusCallback: p.callbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("telephony: telnyx marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/texml/calls/%s", p.baseURL, p.texmlAppID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("telephony: telnyx create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	p.logger.Info("telnyx: placing outbound call", "to", logging.MaskPhone(req.To), "conversation_id", req.ConversationID)
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("telephony: telnyx http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("telephony: telnyx read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("telnyx: API error", "status", resp.StatusCode, "body", truncate(string(respBody), 512))
		return "", fmt.Errorf("telephony: telnyx API returned %d", resp.StatusCode)
	}

	var out telnyxCallResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("telephony: telnyx decode response: %w", err)
	}
	handle := out.handle()
	if handle == "" {
		return "", fmt.Errorf("telephony: telnyx response missing call id")
	}
	return handle, nil
}
