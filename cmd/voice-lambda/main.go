// Command voice-lambda is the API Gateway ingress for vendor call webhooks.
// It forwards each delivery to the voice-agent API and relays the API's
// answer, so vendor retries still see the pipeline's status codes.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/voice-agent/pkg/logging"
)

// webhookRoutes maps the forwarded paths to the vendor that calls them.
var webhookRoutes = map[string]string{
	"/webhooks/twilio": "twilio",
	"/webhook/twilio":  "twilio",
	"/webhooks/vapi":   "vapi",
	"/call/inbound":    "legacy",
}

// forwardedHeaders carry vendor signatures and delivery ids the API needs
// for validation and duplicate detection.
var forwardedHeaders = []string{
	"Content-Type",
	"X-Twilio-Signature",
	"I-Twilio-Idempotency-Token",
	"X-Vapi-Secret",
	"X-Vapi-Request-Id",
	"Idempotency-Key",
}

// relayedHeaders are copied from the API response back to the vendor.
var relayedHeaders = []string{"Content-Type", "Retry-After"}

type forwarder struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *logging.Logger
}

func newForwarderFromEnv(logger *logging.Logger) (*forwarder, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL")), "/")
	if baseURL == "" {
		return nil, errors.New("UPSTREAM_BASE_URL is required")
	}

	// Recording transcription plus classification can take a while; API
	// Gateway cuts integrations off at 30s.
	timeout := 25 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}
	return &forwarder{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	f, err := newForwarderFromEnv(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	lambda.Start(f.Handle)
}

// Handle never returns an error: every failure is expressed as a status
// code the vendor understands.
func (f *forwarder) Handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if path == "/health" {
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"}), nil
	}
	vendor, ok := webhookRoutes[path]
	if !ok {
		return errorResponse(http.StatusNotFound, "not_found"), nil
	}
	if !strings.EqualFold(evt.RequestContext.HTTP.Method, http.MethodPost) {
		return errorResponse(http.StatusMethodNotAllowed, "method_not_allowed"), nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return errorResponse(http.StatusBadRequest, "invalid_body"), nil
	}

	resp, err := f.forward(ctx, path, evt, body)
	if err != nil {
		f.log().Warn("webhook forward failed", "vendor", vendor, "path", path, "request_id", evt.RequestContext.RequestID, "error", err)
		return errorResponse(http.StatusBadGateway, "upstream_unreachable"), nil
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		f.log().Warn("pipeline returned error", "vendor", vendor, "path", path, "status", resp.StatusCode)
	}
	return resp, nil
}

func (f *forwarder) forward(ctx context.Context, path string, evt events.APIGatewayV2HTTPRequest, body []byte) (events.APIGatewayV2HTTPResponse, error) {
	target := f.baseURL + path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}

	in := toHeader(evt.Headers)
	for _, h := range forwardedHeaders {
		if v := strings.TrimSpace(in.Get(h)); v != "" {
			req.Header.Set(h, v)
		}
	}
	if id := evt.RequestContext.RequestID; id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	// Twilio signs the public URL, so the API must rebuild it from these.
	host := strings.TrimSpace(evt.RequestContext.DomainName)
	if host == "" {
		host = strings.TrimSpace(in.Get("Host"))
	}
	if host != "" {
		req.Header.Set("X-Forwarded-Host", host)
	}
	proto := strings.TrimSpace(in.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "https"
	}
	req.Header.Set("X-Forwarded-Proto", proto)

	resp, err := f.client.Do(req)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, fmt.Errorf("read upstream body: %w", err)
	}

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	for _, h := range relayedHeaders {
		if v := resp.Header.Get(h); v != "" {
			out.Headers[strings.ToLower(h)] = v
		}
	}
	return out, nil
}

func (f *forwarder) log() *logging.Logger {
	if f.logger == nil {
		return logging.Default()
	}
	return f.logger
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

// toHeader canonicalizes API Gateway's lower-cased header map.
func toHeader(in map[string]string) http.Header {
	h := make(http.Header, len(in))
	for k, v := range in {
		h.Set(k, v)
	}
	return h
}

func jsonResponse(status int, payload any) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(payload)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"content-type": "application/json"},
	}
}

func errorResponse(status int, code string) events.APIGatewayV2HTTPResponse {
	return jsonResponse(status, map[string]string{"error": code})
}
