package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/voice-agent/internal/archive"
	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// HandoffNotifier emails an operator inbox when a caller asks for a live
// agent or a ticket is escalated. It is a conversation.Listener.
type HandoffNotifier struct {
	email  EmailSender
	to     string
	logger *logging.Logger
}

var _ conversation.Listener = (*HandoffNotifier)(nil)

func NewHandoffNotifier(email EmailSender, to string, logger *logging.Logger) *HandoffNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &HandoffNotifier{email: email, to: strings.TrimSpace(to), logger: logger}
}

func (n *HandoffNotifier) ConversationClosed(context.Context, conversation.Conversation) {}

func (n *HandoffNotifier) TicketReconciled(ctx context.Context, c conversation.Conversation, outcome conversation.TicketOutcome) {
	if n.email == nil || n.to == "" {
		return
	}
	var subject, kind string
	switch {
	case outcome.Handoff():
		subject = fmt.Sprintf("Caller requested a live agent (conversation %d)", c.ID)
		kind = "handoff"
	case outcome.Status == conversation.TicketEscalated:
		subject = fmt.Sprintf("Escalated ticket %d updated (conversation %d)", outcome.TicketID, c.ID)
		kind = "escalation"
	default:
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	msg := EmailMessage{
		To:      n.to,
		Subject: subject,
		Body:    handoffBody(c, outcome),
		Tags: map[string]string{
			"conversation_id": strconv.FormatInt(c.ID, 10),
			"kind":            kind,
		},
	}
	if err := n.email.Send(sendCtx, msg); err != nil {
		n.logger.Error("handoff notification failed", "conversation_id", c.ID, "error", err)
	}
}

// handoffBody leaves mail providers with the masked caller number and a
// scrubbed transcript only.
func handoffBody(c conversation.Conversation, outcome conversation.TicketOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation: %d\n", c.ID)
	if c.ExternalID != "" {
		fmt.Fprintf(&b, "Call: %s\n", c.ExternalID)
	}
	fmt.Fprintf(&b, "Caller: %s\n", logging.MaskPhone(c.Phone))
	fmt.Fprintf(&b, "Direction: %s\n", c.Direction)
	fmt.Fprintf(&b, "Intent: %s\n", outcome.Intent)
	if t := strings.TrimSpace(c.Transcript); t != "" {
		b.WriteString("\nTranscript:\n")
		b.WriteString(archive.ScrubTranscript(t))
		b.WriteString("\n")
	}
	return b.String()
}
