// Package intent maps transcript text onto the fixed call intent vocabulary.
package intent

import (
	"errors"
	"fmt"
	"strings"
)

// Label is one entry of the intent vocabulary.
type Label string

const (
	ScheduleCallback Label = "SCHEDULE_CALLBACK"
	ResolveIssue     Label = "RESOLVE_ISSUE"
	LiveAgent        Label = "LIVE_AGENT"
	Other            Label = "OTHER"
)

// Vocabulary lists every label a classifier may return.
var Vocabulary = []Label{ScheduleCallback, ResolveIssue, LiveAgent, Other}

var (
	// ErrClassificationFailed marks any failure of the external classification capability.
	ErrClassificationFailed = errors.New("intent: classification failed")
	// ErrUnknownLabel is returned when the capability answers outside the vocabulary.
	ErrUnknownLabel = fmt.Errorf("%w: label outside vocabulary", ErrClassificationFailed)
)

func (l Label) String() string { return string(l) }

// Valid reports whether l belongs to the vocabulary.
func (l Label) Valid() bool {
	for _, v := range Vocabulary {
		if l == v {
			return true
		}
	}
	return false
}

// Parse normalizes raw classifier output (surrounding whitespace, quotes,
// trailing punctuation, case, inner spaces or hyphens) and validates it.
// Unknown labels are rejected rather than coerced to OTHER.
func Parse(raw string) (Label, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'`.")
	s = strings.TrimSpace(s)
	s = strings.ToUpper(s)
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	label := Label(s)
	if !label.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLabel, raw)
	}
	return label, nil
}

// Labels converts persisted intent strings back to labels.
func Labels(raw []string) []Label {
	out := make([]Label, len(raw))
	for i, r := range raw {
		out[i] = Label(r)
	}
	return out
}

// Strings is the inverse of Labels.
func Strings(labels []Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}
