package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/intent"
	"github.com/wolfman30/voice-agent/internal/telephony"
	"github.com/wolfman30/voice-agent/internal/transcription"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

type inlineResolver struct{}

func (inlineResolver) Resolve(_ context.Context, src transcription.Source) (string, error) {
	return src.Transcript, nil
}

type fixedClassifier struct {
	label intent.Label
	err   error
	calls int
}

func (c *fixedClassifier) Classify(_ context.Context, _ string) (intent.Label, error) {
	c.calls++
	return c.label, c.err
}

type countingObserver struct{ outcomes []string }

func (o *countingObserver) ObserveWebhook(vendor, outcome string) {
	o.outcomes = append(o.outcomes, vendor+":"+outcome)
}

func newTestManager(t *testing.T, classifier *fixedClassifier) (*conversation.Manager, *conversation.MemoryStore) {
	t.Helper()
	store := conversation.NewMemoryStore()
	return conversation.NewManager(conversation.ManagerConfig{
		Store:       store,
		Guard:       store.Guard(),
		Transcripts: inlineResolver{},
		Classifier:  classifier,
		Logger:      logging.Default(),
	}), store
}

func twilioForm(reqID string) url.Values {
	return url.Values{
		"CallSid":           {"CA100"},
		"From":              {"+15551230000"},
		"CallStatus":        {"completed"},
		"TranscriptionText": {"please call me back tomorrow"},
		"requestId":         {reqID},
	}
}

func postForm(h http.HandlerFunc, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func postJSON(h http.HandlerFunc, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func twilioSignature(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioWebhookProcessesThenReportsDuplicate(t *testing.T) {
	classifier := &fixedClassifier{label: intent.ScheduleCallback}
	manager, store := newTestManager(t, classifier)
	h := NewWebhookHandler(WebhookConfig{Pipeline: manager})

	rec := postForm(h.Twilio, "/webhooks/twilio", twilioForm("req-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, "CLOSED", body["conversationStatus"])
	assert.Equal(t, "SCHEDULE_CALLBACK", body["intent"])
	ticket := body["ticket"].(map[string]any)
	assert.Equal(t, "created", ticket["kind"])

	id := int64(body["conversationId"].(float64))
	conv, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "CA100", conv.ExternalID)

	rec = postForm(h.Twilio, "/webhooks/twilio", twilioForm("req-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "duplicate"}, decodeBody(t, rec))
	assert.Equal(t, 1, classifier.calls)
}

func TestTwilioWebhookSignature(t *testing.T) {
	manager, _ := newTestManager(t, &fixedClassifier{label: intent.Other})
	observer := &countingObserver{}
	h := NewWebhookHandler(WebhookConfig{
		Pipeline:        manager,
		TwilioValidator: telephony.NewTwilioSignatureValidator("token"),
		PublicBaseURL:   "https://voice.example.com",
		Metrics:         observer,
	})

	form := twilioForm("req-sig")
	rec := postForm(h.Twilio, "/webhooks/twilio", form, map[string]string{"X-Twilio-Signature": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{"twilio:rejected"}, observer.outcomes)

	sig := twilioSignature("token", "https://voice.example.com/webhooks/twilio", form)
	rec = postForm(h.Twilio, "/webhooks/twilio", form, map[string]string{"X-Twilio-Signature": sig})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(h.Twilio, "/webhooks/twilio", `{"CallSid":"CA1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVapiWebhookSecretAndNestedMessage(t *testing.T) {
	manager, store := newTestManager(t, &fixedClassifier{label: intent.ResolveIssue})
	h := NewWebhookHandler(WebhookConfig{Pipeline: manager, VapiSecret: "shh"})

	body := `{"message":{"type":"end-of-call-report","transcript":"my bill is wrong",
		"call":{"id":"vapi-call-9","customer":{"number":"+15550001111"}}}}`

	rec := postJSON(h.Vapi, "/webhooks/vapi", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(h.Vapi, "/webhooks/vapi", body, map[string]string{
		"X-Vapi-Secret":     "shh",
		"X-Vapi-Request-Id": "vapi-req-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, "RESOLVE_ISSUE", out["intent"])

	conv, err := store.Get(context.Background(), int64(out["conversationId"].(float64)))
	require.NoError(t, err)
	assert.Equal(t, "vapi-call-9", conv.ExternalID)
	assert.Equal(t, "+15550001111", conv.Phone)
	assert.Equal(t, conversation.StatusClosed, conv.Status)
}

func TestLegacyInboundEnvelope(t *testing.T) {
	manager, _ := newTestManager(t, &fixedClassifier{label: intent.LiveAgent})
	h := NewWebhookHandler(WebhookConfig{Pipeline: manager})

	rec := postJSON(h.LegacyInbound, "/call/inbound",
		`{"event":{"from":"+15551112222","call_id":"legacy-1","transcript":"get me a person","request_id":"legacy-req"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, true, out["handoff"])
	assert.Equal(t, "handoff", out["ticket"].(map[string]any)["kind"])

	rec = postJSON(h.LegacyInbound, "/call/inbound", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookClassificationFailureIsRetryable(t *testing.T) {
	classifier := &fixedClassifier{err: fmt.Errorf("%w: upstream 500", intent.ErrClassificationFailed)}
	manager, _ := newTestManager(t, classifier)
	h := NewWebhookHandler(WebhookConfig{Pipeline: manager})

	rec := postForm(h.Twilio, "/webhooks/twilio", twilioForm("req-retry"), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "classification_failed", decodeBody(t, rec)["error"])

	classifier.err = nil
	classifier.label = intent.Other
	rec = postForm(h.Twilio, "/webhooks/twilio", twilioForm("req-retry"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processed", decodeBody(t, rec)["status"])
}
