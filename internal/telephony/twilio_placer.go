package telephony

import (
	"context"
	"fmt"
	"strings"
	"time"

	twilio "github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/wolfman30/voice-agent/internal/capability"
	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

type twilioCallAPI interface {
	CreateCall(params *twilioapi.CreateCallParams) (*twilioapi.ApiV2010Call, error)
}

// TwilioPlacerConfig configures TwilioCallPlacer.
type TwilioPlacerConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	// StatusCallbackURL receives the completion webhook for placed calls.
	StatusCallbackURL string
	Renderer          PromptRenderer
	Logger            *logging.Logger

	// Timeout bounds each REST request. twilio-go calls take no context, so
	// this is what enforces the capability timeout on the wire. Zero means 30s.
	Timeout time.Duration
}

const defaultTwilioTimeout = 30 * time.Second

// TwilioCallPlacer dials out through Twilio Programmable Voice with inline TwiML.
type TwilioCallPlacer struct {
	api         twilioCallAPI
	from        string
	callbackURL string
	renderer    PromptRenderer
	logger      *logging.Logger
}

func NewTwilioCallPlacer(cfg TwilioPlacerConfig) (*TwilioCallPlacer, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, capability.Unsupported("call", "twilio", "TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	client.SetTimeout(twilioTimeout(cfg.Timeout))
	return newTwilioCallPlacer(client.Api, cfg)
}

func twilioTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTwilioTimeout
	}
	return d
}

func newTwilioCallPlacer(api twilioCallAPI, cfg TwilioPlacerConfig) (*TwilioCallPlacer, error) {
	if strings.TrimSpace(cfg.From) == "" {
		return nil, capability.Unsupported("call", "twilio", "TWILIO_FROM_NUMBER not set")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("telephony: prompt renderer required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioCallPlacer{
		api:         api,
		from:        cfg.From,
		callbackURL: cfg.StatusCallbackURL,
		renderer:    cfg.Renderer,
		logger:      logger,
	}, nil
}

func (p *TwilioCallPlacer) PlaceCall(ctx context.Context, req conversation.CallRequest) (string, error) {
	if req.To == "" {
		return "", fmt.Errorf("telephony: to number required")
	}
	doc, err := p.renderer.Render(ctx, req)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(p.from)
	params.SetTwiml(doc)
	if p.callbackURL != "" {
		params.SetStatusCallback(p.callbackURL)
		params.SetStatusCallbackEvent([]string{"completed"})
	}

	p.logger.Info("twilio: placing outbound call", "to", logging.MaskPhone(req.To), "conversation_id", req.ConversationID)
	call, err := p.createCall(ctx, params)
	if err != nil {
		return "", fmt.Errorf("telephony: twilio create call: %w", err)
	}
	if call == nil || call.Sid == nil || *call.Sid == "" {
		return "", fmt.Errorf("telephony: twilio create call: empty call sid")
	}
	return *call.Sid, nil
}

type createCallResult struct {
	call *twilioapi.ApiV2010Call
	err  error
}

// createCall returns when ctx ends even if the REST call is still in flight;
// the client timeout then bounds the abandoned request.
func (p *TwilioCallPlacer) createCall(ctx context.Context, params *twilioapi.CreateCallParams) (*twilioapi.ApiV2010Call, error) {
	done := make(chan createCallResult, 1)
	go func() {
		call, err := p.api.CreateCall(params)
		done <- createCallResult{call: call, err: err}
	}()
	select {
	case res := <-done:
		return res.call, res.err
	case <-ctx.Done():
		p.logger.Warn("twilio: create call abandoned", "error", ctx.Err())
		return nil, ctx.Err()
	}
}
