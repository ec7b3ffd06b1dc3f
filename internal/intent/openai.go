package intent

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/voice-agent/internal/capability"
)

type chatCompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClassifier classifies with an OpenAI chat-completion model.
type OpenAIClassifier struct {
	api   chatCompletionAPI
	model string
}

// OpenAIConfig configures NewOpenAIClassifier.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewOpenAIClassifier(cfg OpenAIConfig) (*OpenAIClassifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, capability.Unsupported("classifier", "openai", "OPENAI_API_KEY not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIClassifier{api: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens: 16,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("intent: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
