package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appconfig "github.com/wolfman30/voice-agent/internal/config"
	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/http/handlers"
	"github.com/wolfman30/voice-agent/internal/intent"
	"github.com/wolfman30/voice-agent/internal/transcription"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

type inlineResolver struct{}

func (inlineResolver) Resolve(_ context.Context, src transcription.Source) (string, error) {
	return src.Transcript, nil
}

type otherClassifier struct{}

func (otherClassifier) Classify(context.Context, string) (intent.Label, error) {
	return intent.Other, nil
}

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	logger := logging.Default()
	store := conversation.NewMemoryStore()
	manager := conversation.NewManager(conversation.ManagerConfig{
		Store:       store,
		Guard:       store.Guard(),
		Transcripts: inlineResolver{},
		Classifier:  otherClassifier{},
		Logger:      logger,
	})

	cfg := &Config{
		Logger:          logger,
		Webhooks:        handlers.NewWebhookHandler(handlers.WebhookConfig{Pipeline: manager, Logger: logger}),
		Calls:           handlers.NewCallsHandler(nil, manager, logger),
		ConfigHandler:   handlers.ConfigHandler(&appconfig.Config{STTProvider: "openai"}),
		AdminAuthSecret: "admin-secret",
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected request id header")
	}
}

func TestRouterTwilioWebhookAliases(t *testing.T) {
	router := newTestRouter(t, nil)

	for i, path := range []string{"/webhooks/twilio", "/webhook/twilio"} {
		form := url.Values{}
		form.Set("CallSid", "CA-router")
		form.Set("From", "+15550001234")
		form.Set("SpeechResult", "just checking in")
		form.Set("requestId", "router-req-"+string(rune('a'+i)))

		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d: %s", path, http.StatusOK, rr.Code, rr.Body.String())
		}
	}
}

func TestRouterConversationLookupNotFound(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/conversations/42", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestRouterConfigRequiresAdminToken(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("admin-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/config", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"sttProvider":"openai"`) {
		t.Fatalf("unexpected config body %s", rr.Body.String())
	}
}

func TestRouterWebhookRateLimit(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.WebhookRateLimit = 0.001
		cfg.WebhookBurst = 1
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/vapi", strings.NewReader(`{"call_id":"v-1","from":"+15550000000"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:5555"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [200 429], got %v", codes)
	}
}

func TestRouterMetricsMountedWhenConfigured(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", rr.Code, rr.Body.String())
	}
}
