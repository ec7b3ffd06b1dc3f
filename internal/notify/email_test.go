package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-agent/pkg/logging"
)

var tagged = EmailMessage{
	To:      "ops@example.com",
	Subject: "Caller requested a live agent",
	Body:    "Conversation: 5",
	Tags:    map[string]string{"kind": "handoff", "conversation_id": "5"},
}

type fakeSendGrid struct {
	sent   *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = m
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestNewSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "voice@example.com"}, nil))

	s := NewSendGridSender(SendGridConfig{APIKey: "SG.key", FromEmail: "voice@example.com"}, nil)
	require.NotNil(t, s)
	assert.Equal(t, "Voice Agent", s.from.name)
}

func TestSendGridSenderSend(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	s := &SendGridSender{client: fake, from: newSender("voice@example.com", ""), logger: logging.Default()}

	require.NoError(t, s.Send(context.Background(), tagged))
	require.NotNil(t, fake.sent)
	assert.Equal(t, tagged.Subject, fake.sent.Subject)
	assert.Equal(t, "voice@example.com", fake.sent.From.Address)
	require.Len(t, fake.sent.Personalizations, 1)
	assert.Equal(t, "ops@example.com", fake.sent.Personalizations[0].To[0].Address)
	assert.Equal(t, "5", fake.sent.Personalizations[0].CustomArgs["conversation_id"])
	assert.Equal(t, []string{"voice-agent"}, fake.sent.Categories)

	fake.status = 401
	assert.ErrorContains(t, s.Send(context.Background(), tagged), "401")

	fake.err = errors.New("dial tcp: timeout")
	assert.ErrorContains(t, s.Send(context.Background(), tagged), "dial tcp")
}

func TestSendRejectsIncompleteMessages(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	s := &SendGridSender{client: fake, from: newSender("voice@example.com", ""), logger: logging.Default()}

	assert.Error(t, s.Send(context.Background(), EmailMessage{Subject: "x"}))
	assert.Error(t, s.Send(context.Background(), EmailMessage{To: "ops@example.com"}))
	assert.Nil(t, fake.sent)
	assert.Error(t, NewStubEmailSender(nil).Send(context.Background(), EmailMessage{}))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSESSenderSend(t *testing.T) {
	fake := &fakeSES{}
	s := NewSESSender(fake, SESConfig{FromEmail: "voice@example.com", FromName: "Call Desk"}, nil)
	require.NotNil(t, s)

	require.NoError(t, s.Send(context.Background(), tagged))
	assert.Equal(t, `"Call Desk" <voice@example.com>`, aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"ops@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "Conversation: 5", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	require.Len(t, fake.input.EmailTags, 2)
	assert.Equal(t, "conversation_id", aws.ToString(fake.input.EmailTags[0].Name))
	assert.Equal(t, "kind", aws.ToString(fake.input.EmailTags[1].Name))

	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

func TestStubEmailSender(t *testing.T) {
	assert.NoError(t, NewStubEmailSender(nil).Send(context.Background(), tagged))
}
