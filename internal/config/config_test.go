package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "STT_PROVIDER", "TTS_PROVIDER", "CLASSIFIER_PROVIDER", "CALL_PROVIDER", "OUTBOUND_MAX_ATTEMPTS", "OPENAI_MODEL", "TWILIO_TTS_VOICE", "BEDROCK_MODEL_ID"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.STTProvider != "openai" || cfg.TTSProvider != "twilio" {
		t.Fatalf("unexpected default providers stt=%s tts=%s", cfg.STTProvider, cfg.TTSProvider)
	}
	if cfg.CallProvider != "auto" {
		t.Fatalf("expected auto call provider, got %s", cfg.CallProvider)
	}
	if cfg.OutboundMaxAttempts != 2 {
		t.Fatalf("expected 2 outbound attempts, got %d", cfg.OutboundMaxAttempts)
	}
	if cfg.OutboundRetryBackoff != 0 {
		t.Fatalf("expected no outbound backoff, got %s", cfg.OutboundRetryBackoff)
	}
	if cfg.OpenAIModel != "gpt-3.5-turbo" {
		t.Fatalf("expected default chat model, got %s", cfg.OpenAIModel)
	}
	if cfg.TwilioTTSVoice != "Polly.Joanna" {
		t.Fatalf("expected default twilio voice, got %s", cfg.TwilioTTSVoice)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("STT_PROVIDER", "  Deepgram ")
	t.Setenv("CALL_PROVIDER", "TELNYX")
	t.Setenv("CAPABILITY_TIMEOUT", "5s")
	t.Setenv("OUTBOUND_MAX_ATTEMPTS", "3")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("WEBHOOK_RATE_LIMIT", "2.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.STTProvider != "deepgram" {
		t.Fatalf("expected normalized stt provider, got %q", cfg.STTProvider)
	}
	if cfg.CallProvider != "telnyx" {
		t.Fatalf("expected normalized call provider, got %q", cfg.CallProvider)
	}
	if cfg.CapabilityTimeout != 5*time.Second {
		t.Fatalf("expected capability timeout override, got %s", cfg.CapabilityTimeout)
	}
	if cfg.OutboundMaxAttempts != 3 {
		t.Fatalf("expected attempts override, got %d", cfg.OutboundMaxAttempts)
	}
	if !cfg.RedisTLS {
		t.Fatal("expected redis tls enabled")
	}
	if cfg.WebhookRateLimit != 2.5 {
		t.Fatalf("expected rate limit override, got %v", cfg.WebhookRateLimit)
	}
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("OUTBOUND_MAX_ATTEMPTS", "two")
	t.Setenv("CAPABILITY_TIMEOUT", "soon")
	cfg := Load()
	if cfg.OutboundMaxAttempts != 2 {
		t.Fatalf("expected fallback attempts, got %d", cfg.OutboundMaxAttempts)
	}
	if cfg.CapabilityTimeout != 30*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.CapabilityTimeout)
	}
}

func TestAWSEnabled(t *testing.T) {
	cfg := &Config{}
	if cfg.AWSEnabled() {
		t.Fatal("expected aws disabled for empty config")
	}
	cfg.ArchiveBucket = "calls"
	if !cfg.AWSEnabled() {
		t.Fatal("expected aws enabled when archive bucket set")
	}
}
