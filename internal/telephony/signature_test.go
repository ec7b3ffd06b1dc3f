package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(token, fullURL string, form url.Values) string {
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

func TestTwilioSignatureValidator(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}, "From": {"+15551234567"}}
	fullURL := "https://voice.example.com/webhooks/twilio"

	req := httptest.NewRequest("POST", "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sign("secret", fullURL, form))
	require.NoError(t, req.ParseForm())

	v := NewTwilioSignatureValidator("secret")
	assert.True(t, v.Validate(req, AbsoluteURL(req, "https://voice.example.com/")))

	req.Header.Set("X-Twilio-Signature", sign("other", fullURL, form))
	assert.False(t, v.Validate(req, fullURL))

	req.Header.Del("X-Twilio-Signature")
	assert.False(t, v.Validate(req, fullURL))
}

func TestAbsoluteURLFromForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhooks/twilio?x=1", nil)
	req.Host = "internal:8080"
	assert.Equal(t, "http://internal:8080/webhooks/twilio?x=1", AbsoluteURL(req, ""))

	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "voice.example.com")
	assert.Equal(t, "https://voice.example.com/webhooks/twilio?x=1", AbsoluteURL(req, ""))
}
