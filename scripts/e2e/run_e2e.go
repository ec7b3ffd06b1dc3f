// Package main runs end-to-end scenarios against a deployed voice agent.
//
// Scenarios cover:
//   - Health check
//   - Twilio callback with speech, then a redelivery of the same request
//   - Unsigned Twilio callback rejection (when TWILIO_AUTH_TOKEN is set)
//   - Vapi end-of-call report routed to a live agent
//   - Legacy {"event": {...}} envelope on /call/inbound
//   - Operator config summary behind the admin JWT
//
// Usage:
//
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go twilio-speech # runs one
//
// Optional: TWILIO_AUTH_TOKEN, PUBLIC_BASE_URL (the URL Twilio signs),
// VAPI_WEBHOOK_SECRET, ADMIN_JWT_SECRET.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testPhone = "+15005550002"

var (
	apiBase    string
	publicBase string
	authToken  string
	vapiSecret string
	jwtSecret  string
	httpClient = &http.Client{Timeout: 60 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type webhookResult struct {
	Status             string `json:"status"`
	Error              string `json:"error"`
	ConversationID     int64  `json:"conversationId"`
	ConversationStatus string `json:"conversationStatus"`
	Intent             string `json:"intent"`
	Handoff            bool   `json:"handoff"`
	Ticket             *struct {
		Kind     string `json:"kind"`
		TicketID int64  `json:"ticketId"`
	} `json:"ticket"`
}

type conversationView struct {
	ID         int64    `json:"id"`
	Status     string   `json:"status"`
	Transcript string   `json:"transcript"`
	Intents    []string `json:"intents"`
	Tickets    []struct {
		Category string `json:"category"`
		Status   string `json:"status"`
	} `json:"tickets"`
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// twilioSignature reproduces Twilio's HMAC-SHA1 over the URL followed by the
// sorted form parameters.
func twilioSignature(fullURL string, form url.Values) string {
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
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postTwilio(form url.Values, idempotencyToken string, sign bool) (int, webhookResult, error) {
	path := "/webhooks/twilio"
	req, _ := http.NewRequest(http.MethodPost, apiBase+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("I-Twilio-Idempotency-Token", idempotencyToken)
	if sign && authToken != "" {
		req.Header.Set("X-Twilio-Signature", twilioSignature(publicBase+path, form))
	}
	return do(req)
}

func postJSON(path string, payload interface{}, headers map[string]string) (int, webhookResult, error) {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, apiBase+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(req)
}

func do(req *http.Request) (int, webhookResult, error) {
	var out webhookResult
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, out, err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return resp.StatusCode, out, fmt.Errorf("decode %d response: %w: %s", resp.StatusCode, err, string(data))
		}
	}
	return resp.StatusCode, out, nil
}

func getConversation(id int64) (*conversationView, error) {
	resp, err := httpClient.Get(fmt.Sprintf("%s/conversations/%d", apiBase, id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get conversation returned %d: %s", resp.StatusCode, string(body))
	}
	var view conversationView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, err
	}
	return &view, nil
}

func vapiHeaders(requestID string) map[string]string {
	h := map[string]string{"X-Vapi-Request-Id": requestID}
	if vapiSecret != "" {
		h["X-Vapi-Secret"] = vapiSecret
	}
	return h
}

func generateJWT(secret string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "e2e",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func scenarioHealth(t *T) {
	resp, err := httpClient.Get(apiBase + "/health")
	if err != nil {
		t.fatalf("health: %v", err)
		return
	}
	defer resp.Body.Close()
	t.check("GET /health returns 200", resp.StatusCode == http.StatusOK)
	t.check("response carries X-Request-ID", resp.Header.Get("X-Request-ID") != "")
}

func scenarioTwilioSpeech(t *T) {
	callSid := uniqueID("CA")
	token := uniqueID("twilio")
	form := url.Values{
		"CallSid":      {callSid},
		"From":         {testPhone},
		"CallStatus":   {"completed"},
		"SpeechResult": {"Can someone call me back tomorrow afternoon about my account?"},
	}

	code, res, err := postTwilio(form, token, true)
	if err != nil {
		t.fatalf("post twilio: %v", err)
		return
	}
	t.check(fmt.Sprintf("first delivery returns 200 (got %d %s)", code, res.Error), code == http.StatusOK)
	t.check("status is processed", res.Status == "processed")
	t.check("conversation closed", res.ConversationStatus == "CLOSED")
	t.check(fmt.Sprintf("intent is SCHEDULE_CALLBACK (got %q)", res.Intent), res.Intent == "SCHEDULE_CALLBACK")
	t.check("ticket created", res.Ticket != nil && res.Ticket.TicketID > 0)
	t.check("no handoff", !res.Handoff)

	code, dup, err := postTwilio(form, token, true)
	if err != nil {
		t.fatalf("redeliver twilio: %v", err)
		return
	}
	t.check("redelivery returns 200", code == http.StatusOK)
	t.check("redelivery reported as duplicate", dup.Status == "duplicate")

	if res.ConversationID == 0 {
		return
	}
	view, err := getConversation(res.ConversationID)
	if err != nil {
		t.fatalf("get conversation: %v", err)
		return
	}
	t.check("view is CLOSED", view.Status == "CLOSED")
	t.check("transcript stored once", strings.Count(view.Transcript, "call me back") == 1)
	t.check("exactly one ticket", len(view.Tickets) == 1)
}

func scenarioUnsignedRejected(t *T) {
	if authToken == "" {
		fmt.Println("    SKIP: TWILIO_AUTH_TOKEN not set")
		return
	}
	form := url.Values{"CallSid": {uniqueID("CA")}, "From": {testPhone}}
	code, _, err := postTwilio(form, uniqueID("twilio"), false)
	if err != nil {
		t.fatalf("post twilio: %v", err)
		return
	}
	t.check(fmt.Sprintf("unsigned callback returns 401 (got %d)", code), code == http.StatusUnauthorized)
}

func scenarioVapiLiveAgent(t *T) {
	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"type":       "end-of-call-report",
			"transcript": "I need to speak to a real person right now please",
			"call": map[string]interface{}{
				"id":       uniqueID("vapi-call"),
				"customer": map[string]string{"number": testPhone},
			},
		},
	}
	code, res, err := postJSON("/webhooks/vapi", payload, vapiHeaders(uniqueID("vapi")))
	if err != nil {
		t.fatalf("post vapi: %v", err)
		return
	}
	t.check(fmt.Sprintf("vapi returns 200 (got %d %s)", code, res.Error), code == http.StatusOK)
	t.check(fmt.Sprintf("intent is LIVE_AGENT (got %q)", res.Intent), res.Intent == "LIVE_AGENT")
	t.check("handoff reported", res.Handoff)
	t.check("no ticket id on handoff", res.Ticket == nil || res.Ticket.TicketID == 0)
}

func scenarioLegacyEnvelope(t *T) {
	payload := map[string]interface{}{
		"event": map[string]interface{}{
			"call_id":    uniqueID("legacy"),
			"from":       testPhone,
			"status":     "ended",
			"transcript": "My internet has been down since Monday and I want it fixed",
		},
	}
	code, res, err := postJSON("/call/inbound", payload, map[string]string{"Idempotency-Key": uniqueID("legacy")})
	if err != nil {
		t.fatalf("post legacy: %v", err)
		return
	}
	t.check(fmt.Sprintf("legacy route returns 200 (got %d %s)", code, res.Error), code == http.StatusOK)
	t.check(fmt.Sprintf("intent is RESOLVE_ISSUE (got %q)", res.Intent), res.Intent == "RESOLVE_ISSUE")
}

func scenarioAdminConfig(t *T) {
	if jwtSecret == "" {
		fmt.Println("    SKIP: ADMIN_JWT_SECRET not set")
		return
	}
	resp, err := httpClient.Get(apiBase + "/config")
	if err != nil {
		t.fatalf("get config: %v", err)
		return
	}
	resp.Body.Close()
	t.check("config without token returns 401", resp.StatusCode == http.StatusUnauthorized)

	token, err := generateJWT(jwtSecret)
	if err != nil {
		t.fatalf("sign token: %v", err)
		return
	}
	req, _ := http.NewRequest(http.MethodGet, apiBase+"/config", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = httpClient.Do(req)
	if err != nil {
		t.fatalf("get config: %v", err)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	t.check("config with token returns 200", resp.StatusCode == http.StatusOK)
	t.check("config summary names providers", bytes.Contains(body, []byte("classifier")))
	if authToken != "" {
		t.check("config summary hides the auth token", !bytes.Contains(body, []byte(authToken)))
	}
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}
	publicBase = strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	if publicBase == "" {
		publicBase = apiBase
	}
	authToken = os.Getenv("TWILIO_AUTH_TOKEN")
	vapiSecret = os.Getenv("VAPI_WEBHOOK_SECRET")
	jwtSecret = os.Getenv("ADMIN_JWT_SECRET")

	scenarios := []scenario{
		{"health", scenarioHealth},
		{"twilio-speech", scenarioTwilioSpeech},
		{"unsigned-rejected", scenarioUnsignedRejected},
		{"vapi-live-agent", scenarioVapiLiveAgent},
		{"legacy-envelope", scenarioLegacyEnvelope},
		{"admin-config", scenarioAdminConfig},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "✅"
		if t.failed > 0 {
			status = "❌"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\n❌ SOME SCENARIOS FAILED")
		os.Exit(1)
	}
	fmt.Println("\n✅ ALL SCENARIOS PASSED")
}
