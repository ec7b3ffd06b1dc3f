package telephony

import (
	"fmt"
	"net/http"

	"github.com/twilio/twilio-go/client"
)

// TwilioSignatureValidator checks X-Twilio-Signature against the auth token.
type TwilioSignatureValidator struct {
	validator client.RequestValidator
}

func NewTwilioSignatureValidator(authToken string) *TwilioSignatureValidator {
	return &TwilioSignatureValidator{validator: client.NewRequestValidator(authToken)}
}

// Validate reports whether the signed form post came from Twilio. r.PostForm
// must already be parsed. publicURL is the URL Twilio was configured with.
func (v *TwilioSignatureValidator) Validate(r *http.Request, publicURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(publicURL, params, signature)
}

// AbsoluteURL rebuilds the externally visible URL of r. base, when set,
// replaces scheme and host (deployments behind a proxy).
func AbsoluteURL(r *http.Request, base string) string {
	if base != "" {
		return trimSlash(base) + r.URL.RequestURI()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
