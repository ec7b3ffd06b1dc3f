package handlers

import (
	"net/http"

	appconfig "github.com/wolfman30/voice-agent/internal/config"
)

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ProviderSummary is the non-secret view of the selected capabilities.
type ProviderSummary struct {
	Env                 string `json:"env"`
	STTProvider         string `json:"sttProvider"`
	TTSProvider         string `json:"ttsProvider"`
	ClassifierProvider  string `json:"classifierProvider"`
	CallProvider        string `json:"callProvider"`
	OpenAIModel         string `json:"openaiModel,omitempty"`
	WhisperModel        string `json:"whisperModel,omitempty"`
	DeepgramModel       string `json:"deepgramModel,omitempty"`
	ElevenModelID       string `json:"elevenModelId,omitempty"`
	TwilioTTSVoice      string `json:"twilioTtsVoice,omitempty"`
	BedrockModelID      string `json:"bedrockModelId,omitempty"`
	GeminiModel         string `json:"geminiModel,omitempty"`
	OutboundMaxAttempts int    `json:"outboundMaxAttempts"`
	Persistence         string `json:"persistence"`
	DuplicateCache      bool   `json:"duplicateCache"`
	Archive             bool   `json:"archive"`
	LifecycleEvents     bool   `json:"lifecycleEvents"`
}

// SummarizeConfig builds the summary. Credentials never appear in it.
func SummarizeConfig(cfg *appconfig.Config) ProviderSummary {
	persistence := "memory"
	if cfg.DatabaseURL != "" {
		persistence = "postgres"
	}
	return ProviderSummary{
		Env:                 cfg.Env,
		STTProvider:         cfg.STTProvider,
		TTSProvider:         cfg.TTSProvider,
		ClassifierProvider:  cfg.ClassifierProvider,
		CallProvider:        cfg.CallProvider,
		OpenAIModel:         cfg.OpenAIModel,
		WhisperModel:        cfg.OpenAIWhisperModel,
		DeepgramModel:       cfg.DeepgramModel,
		ElevenModelID:       cfg.ElevenModelID,
		TwilioTTSVoice:      cfg.TwilioTTSVoice,
		BedrockModelID:      cfg.BedrockModelID,
		GeminiModel:         cfg.GeminiModel,
		OutboundMaxAttempts: cfg.OutboundMaxAttempts,
		Persistence:         persistence,
		DuplicateCache:      cfg.RedisAddr != "",
		Archive:             cfg.ArchiveBucket != "",
		LifecycleEvents:     cfg.LifecycleQueueURL != "",
	}
}

// ConfigHandler serves GET /config.
func ConfigHandler(cfg *appconfig.Config) http.HandlerFunc {
	summary := SummarizeConfig(cfg)
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, summary)
	}
}
