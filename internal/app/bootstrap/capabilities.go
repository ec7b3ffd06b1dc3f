package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/voice-agent/internal/capability"
	appconfig "github.com/wolfman30/voice-agent/internal/config"
	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/intent"
	"github.com/wolfman30/voice-agent/internal/telephony"
	"github.com/wolfman30/voice-agent/internal/transcription"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// BuildTranscriber selects the speech-to-text capability from STT_PROVIDER.
func BuildTranscriber(cfg *appconfig.Config) (transcription.Transcriber, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	switch cfg.STTProvider {
	case "openai", "whisper":
		t, err := transcription.NewWhisperTranscriber(transcription.WhisperConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIWhisperModel,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case "deepgram":
		t, err := transcription.NewDeepgramTranscriber(transcription.DeepgramConfig{
			APIKey: cfg.DeepgramAPIKey,
			Model:  cfg.DeepgramModel,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, capability.Unsupported("stt", cfg.STTProvider, "unknown provider")
	}
}

// BuildClassifierBackend selects the classification capability from
// CLASSIFIER_PROVIDER and returns it with the provider name actually chosen.
// "auto" prefers OpenAI, then Bedrock (with Gemini as fallback), then Gemini.
// bedrock may be nil when AWS is not configured.
func BuildClassifierBackend(ctx context.Context, cfg *appconfig.Config, bedrock *bedrockruntime.Client, logger *logging.Logger) (intent.Classifier, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.ClassifierProvider {
	case "openai":
		c, err := intent.NewOpenAIClassifier(intent.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
		if err != nil {
			return nil, "openai", err
		}
		return c, "openai", nil
	case "bedrock":
		c, err := bedrockClassifier(ctx, cfg, bedrock, false, logger)
		return c, "bedrock", err
	case "gemini":
		g, err := intent.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "gemini", err
		}
		return intent.NewLLMClassifier(g, g.Model()), "gemini", nil
	case "auto":
		switch {
		case strings.TrimSpace(cfg.OpenAIAPIKey) != "":
			cfg := *cfg
			cfg.ClassifierProvider = "openai"
			return BuildClassifierBackend(ctx, &cfg, bedrock, logger)
		case cfg.BedrockModelID != "" && bedrock != nil:
			c, err := bedrockClassifier(ctx, cfg, bedrock, true, logger)
			return c, "bedrock", err
		case strings.TrimSpace(cfg.GeminiAPIKey) != "":
			cfg := *cfg
			cfg.ClassifierProvider = "gemini"
			return BuildClassifierBackend(ctx, &cfg, bedrock, logger)
		default:
			return nil, "auto", capability.Unsupported("classifier", "auto", "no classifier credentials configured")
		}
	default:
		return nil, cfg.ClassifierProvider, capability.Unsupported("classifier", cfg.ClassifierProvider, "unknown provider")
	}
}

func bedrockClassifier(ctx context.Context, cfg *appconfig.Config, bedrock *bedrockruntime.Client, withFallback bool, logger *logging.Logger) (intent.Classifier, error) {
	if strings.TrimSpace(cfg.BedrockModelID) == "" {
		return nil, capability.Unsupported("classifier", "bedrock", "BEDROCK_MODEL_ID not set")
	}
	if bedrock == nil {
		return nil, capability.Unsupported("classifier", "bedrock", "AWS is not configured")
	}
	var client intent.LLMClient = intent.NewBedrockLLMClient(bedrock)
	if withFallback && strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := intent.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini fallback disabled", "error", err)
		} else {
			client = intent.NewFallbackLLMClient(client, gemini, logger, intent.WithBackendNames("bedrock", "gemini"))
			logger.Info("classifier fallback enabled", "primary", "bedrock", "fallback", "gemini")
		}
	}
	return intent.NewLLMClassifier(client, cfg.BedrockModelID), nil
}

// BuildPromptRenderer selects the outbound prompt synthesizer from
// TTS_PROVIDER. ElevenLabs audio has to be hosted somewhere Twilio can fetch
// it, so it needs publisher; pass nil when no bucket is configured.
func BuildPromptRenderer(cfg *appconfig.Config, publisher telephony.AudioPublisher) (telephony.PromptRenderer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	switch cfg.TTSProvider {
	case "twilio", "":
		return telephony.NewTwiMLSynthesizer(cfg.TwilioTTSVoice), nil
	case "elevenlabs":
		s, err := telephony.NewElevenLabsSynthesizer(telephony.ElevenLabsConfig{
			APIKey:    cfg.ElevenAPIKey,
			VoiceID:   cfg.ElevenVoiceID,
			ModelID:   cfg.ElevenModelID,
			Publisher: publisher,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, capability.Unsupported("tts", cfg.TTSProvider, "unknown provider")
	}
}

// BuildCallPlacer selects the outbound call capability from CALL_PROVIDER.
// With "auto" and no telephony credentials it returns a nil placer and no
// error: outbound calling is then disabled.
func BuildCallPlacer(cfg *appconfig.Config, renderer telephony.PromptRenderer, logger *logging.Logger) (conversation.CallPlacer, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	provider := cfg.CallProvider
	if provider == "auto" {
		switch {
		case cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "":
			provider = "twilio"
		case cfg.TelnyxAPIKey != "":
			provider = "telnyx"
		default:
			logger.Warn("no call provider credentials configured; outbound calling disabled")
			return nil, "", nil
		}
	}

	callbackURL := ""
	if base := strings.TrimRight(cfg.PublicBaseURL, "/"); base != "" {
		callbackURL = base + "/webhooks/twilio"
	}

	switch provider {
	case "twilio":
		p, err := telephony.NewTwilioCallPlacer(telephony.TwilioPlacerConfig{
			AccountSID:        cfg.TwilioAccountSID,
			AuthToken:         cfg.TwilioAuthToken,
			From:              cfg.TwilioFromNumber,
			StatusCallbackURL: callbackURL,
			Renderer:          renderer,
			Logger:            logger,
			Timeout:           cfg.CapabilityTimeout,
		})
		if err != nil {
			return nil, provider, err
		}
		return p, provider, nil
	case "telnyx":
		p, err := telephony.NewTelnyxCallPlacer(telephony.TelnyxPlacerConfig{
			APIKey:            cfg.TelnyxAPIKey,
			TexmlAppID:        cfg.TelnyxTexmlAppID,
			From:              cfg.TelnyxFromNumber,
			StatusCallbackURL: callbackURL,
			Renderer:          renderer,
			Logger:            logger,
		})
		if err != nil {
			return nil, provider, err
		}
		return p, provider, nil
	default:
		return nil, provider, capability.Unsupported("call", provider, "unknown provider")
	}
}
