package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func testForwarder(baseURL string, client *http.Client) *forwarder {
	if client == nil {
		client = &http.Client{Timeout: time.Second}
	}
	return &forwarder{baseURL: baseURL, timeout: time.Second, client: client}
}

func apiEvent(method, path, body string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Body:    body,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: method, Path: path},
		},
	}
}

func TestHandleLocalResponses(t *testing.T) {
	f := testForwarder("http://127.0.0.1:1", nil)

	badBody := apiEvent(http.MethodPost, "/webhooks/twilio", "not-base64")
	badBody.IsBase64Encoded = true

	cases := []struct {
		name   string
		evt    events.APIGatewayV2HTTPRequest
		status int
		body   string
	}{
		{"health", apiEvent(http.MethodGet, "/health", ""), http.StatusOK, `{"status":"ok"}`},
		{"unknown path", apiEvent(http.MethodPost, "/webhooks/unknown", ""), http.StatusNotFound, `{"error":"not_found"}`},
		{"non-post", apiEvent(http.MethodGet, "/webhooks/twilio", ""), http.StatusMethodNotAllowed, `{"error":"method_not_allowed"}`},
		{"invalid base64", badBody, http.StatusBadRequest, `{"error":"invalid_body"}`},
		{"upstream down", apiEvent(http.MethodPost, "/webhooks/vapi", "{}"), http.StatusBadGateway, `{"error":"upstream_unreachable"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := f.Handle(context.Background(), tc.evt)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.StatusCode)
			}
			if resp.Body != tc.body {
				t.Fatalf("expected body %s, got %s", tc.body, resp.Body)
			}
			if resp.Headers["content-type"] != "application/json" {
				t.Fatalf("expected json content type, got %q", resp.Headers["content-type"])
			}
		})
	}
}

func TestHandleRelaysUpstreamResponse(t *testing.T) {
	type captured struct {
		path    string
		query   string
		headers http.Header
		body    string
	}
	reqCh := make(chan captured, 1)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqCh <- captured{path: r.URL.Path, query: r.URL.RawQuery, headers: r.Header.Clone(), body: string(body)}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"classification_failed"}`))
	}))
	defer upstream.Close()

	evt := apiEvent(http.MethodPost, "/webhooks/twilio", "CallSid=CA1")
	evt.RawQueryString = "attempt=2"
	evt.Headers = map[string]string{
		"content-type":               "application/x-www-form-urlencoded",
		"x-twilio-signature":         "sig",
		"i-twilio-idempotency-token": "idem-1",
		"x-forwarded-proto":          "http",
		"cookie":                     "session=dropped",
	}
	evt.RequestContext.DomainName = "voice.example.com"
	evt.RequestContext.RequestID = "apigw-123"

	resp, err := testForwarder(upstream.URL, upstream.Client()).Handle(context.Background(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected upstream status to be relayed, got %d", resp.StatusCode)
	}
	if resp.Body != `{"error":"classification_failed"}` {
		t.Fatalf("expected upstream body, got %q", resp.Body)
	}
	if resp.Headers["content-type"] != "application/json" || resp.Headers["retry-after"] != "1" {
		t.Fatalf("expected relayed headers, got %v", resp.Headers)
	}

	got := <-reqCh
	if got.path != "/webhooks/twilio" || got.query != "attempt=2" || got.body != "CallSid=CA1" {
		t.Fatalf("unexpected upstream request %+v", got)
	}
	want := map[string]string{
		"Content-Type":               "application/x-www-form-urlencoded",
		"X-Twilio-Signature":         "sig",
		"I-Twilio-Idempotency-Token": "idem-1",
		"X-Forwarded-Host":           "voice.example.com",
		"X-Forwarded-Proto":          "http",
		"X-Request-Id":               "apigw-123",
	}
	for k, v := range want {
		if got.headers.Get(k) != v {
			t.Fatalf("expected %s=%q upstream, got %q", k, v, got.headers.Get(k))
		}
	}
	if got.headers.Get("Cookie") != "" {
		t.Fatalf("unexpected cookie forwarded")
	}
}

func TestHandleForwardsEveryWebhookRoute(t *testing.T) {
	paths := make(chan string, len(webhookRoutes))
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	f := testForwarder(upstream.URL, upstream.Client())
	for path := range webhookRoutes {
		resp, err := f.Handle(context.Background(), apiEvent(http.MethodPost, path, `{"event":{}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusOK, resp.StatusCode)
		}
		if got := <-paths; got != path {
			t.Fatalf("expected upstream path %s, got %s", path, got)
		}
	}
}

func TestDecodeBodyBase64(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte("From=%2B15550001111")),
		IsBase64Encoded: true,
	}
	decoded, err := decodeBody(evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(decoded) != "From=%2B15550001111" {
		t.Fatalf("expected decoded body, got %q", decoded)
	}
}

func TestNewForwarderFromEnv(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	if _, err := newForwarderFromEnv(nil); err == nil {
		t.Fatalf("expected error without UPSTREAM_BASE_URL")
	}

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "nope")
	if _, err := newForwarderFromEnv(nil); err == nil {
		t.Fatalf("expected error for invalid timeout")
	}

	t.Setenv("UPSTREAM_TIMEOUT", "10s")
	f, err := newForwarderFromEnv(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.baseURL != "https://api.example.com" || f.timeout != 10*time.Second {
		t.Fatalf("unexpected forwarder %+v", f)
	}
}
