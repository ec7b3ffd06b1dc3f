package intent

import "strings"

// systemPrompt is shared by every chat-completion backend.
var systemPrompt = strings.Join([]string{
	"You are an intent classifier for phone calls to a support line.",
	"Possible intents:",
	"SCHEDULE_CALLBACK - the caller wants to book, move or reschedule a call or appointment.",
	"RESOLVE_ISSUE - the caller reports a problem they want fixed.",
	"LIVE_AGENT - the caller asks to speak with a human.",
	"OTHER - anything else.",
	"Return only the intent label.",
}, "\n")

// SystemPrompt returns the classification instructions sent to chat backends.
func SystemPrompt() string {
	return systemPrompt
}
