// Package notify emails operators about calls that need a human.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/wolfman30/voice-agent/pkg/logging"
)

// EmailSender delivers one operator email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a plain-text operator notification. Tags are attached as
// provider metadata (SendGrid custom args, SES message tags) so deliveries
// can be traced back to a conversation.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	Tags    map[string]string
}

func (m EmailMessage) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("notify: recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("notify: subject is required")
	}
	return nil
}

// sortedTags returns tag keys in a stable order.
func (m EmailMessage) sortedTags() []string {
	keys := make([]string, 0, len(m.Tags))
	for k := range m.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sender is the From identity shared by every provider.
type sender struct {
	email string
	name  string
}

func newSender(email, name string) sender {
	if strings.TrimSpace(name) == "" {
		name = "Voice Agent"
	}
	return sender{email: strings.TrimSpace(email), name: name}
}

// address renders RFC 5322 "Name <addr>".
func (s sender) address() string {
	return (&mail.Address{Name: s.name, Address: s.email}).String()
}

// StubEmailSender logs instead of sending.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("email not sent (no provider configured)", "to", msg.To, "subject", msg.Subject, "tags", msg.Tags)
	return nil
}
