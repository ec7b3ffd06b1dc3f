package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// redaction is one scrub rule. Rules run in order; earlier rules win on
// overlapping text.
type redaction struct {
	label string
	re    *regexp.Regexp
}

var redactions = []redaction{
	{"[EMAIL]", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{"[SSN]", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"[CARD]", regexp.MustCompile(`\b\d(?:[ -]?\d){12,15}\b`)},
	{"[PHONE]", regexp.MustCompile(`(?:\+?\b1[-.\s]?)?(?:\(\d{3}\)|\d{3})[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	// Speech engines often spell numbers out: "five five five one two ...".
	{"[NUMBER]", regexp.MustCompile(`(?i)\b(?:(?:zero|oh|one|two|three|four|five|six|seven|eight|nine)[\s,-]+){6,}(?:zero|oh|one|two|three|four|five|six|seven|eight|nine)\b`)},
}

// ScrubTranscript masks contact details, card and social security numbers
// spoken during the call, whether transcribed as digits or as words.
func ScrubTranscript(text string) string {
	for _, r := range redactions {
		text = r.re.ReplaceAllString(text, r.label)
	}
	return text
}

// HashPhone returns a stable SHA-256 of the number's digits so formatting
// differences ("+1 (555) 123-4567" vs "+15551234567") hash the same.
func HashPhone(phone string) string {
	sum := sha256.Sum256([]byte(phoneDigits(phone)))
	return hex.EncodeToString(sum[:])
}

func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}
