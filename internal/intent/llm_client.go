package intent

import (
	"context"
	"errors"
	"strings"
)

// Chat roles understood by every LLMClient.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// labelMaxTokens covers the longest label with room for a stray period.
const labelMaxTokens = 16

var errEmptyCompletion = errors.New("intent: llm returned empty text")

// LLMClient is implemented by the Bedrock and Gemini clients.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest is a single-shot completion. System entries are concatenated
// by backends that accept only one system prompt.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMClassifier asks a chat model for a label and returns the model's
// answer with any chatter around it removed. Vocabulary checks are left
// to the Adapter.
type LLMClassifier struct {
	client LLMClient
	model  string
}

func NewLLMClassifier(client LLMClient, model string) *LLMClassifier {
	if client == nil {
		panic("intent: llm client required")
	}
	return &LLMClassifier{client: client, model: model}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (string, error) {
	resp, err := c.client.Complete(ctx, c.request(text))
	if err != nil {
		return "", err
	}
	answer := extractLabel(resp.Text)
	if answer == "" {
		return "", errEmptyCompletion
	}
	return answer, nil
}

func (c *LLMClassifier) request(transcript string) LLMRequest {
	return LLMRequest{
		Model:     c.model,
		System:    []string{SystemPrompt()},
		Messages:  []ChatMessage{{Role: ChatRoleUser, Content: transcript}},
		MaxTokens: labelMaxTokens,
	}
}

// extractLabel keeps the first non-blank line of a completion and drops a
// leading "intent:" or "label:" tag.
func extractLabel(completion string) string {
	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, tag := range []string{"intent:", "label:"} {
			if strings.HasPrefix(lower, tag) {
				line = strings.TrimSpace(line[len(tag):])
				break
			}
		}
		return line
	}
	return ""
}
