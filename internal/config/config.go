package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	DuplicateCacheTTL time.Duration

	// Capability selection. Each is resolved once at startup.
	STTProvider        string
	TTSProvider        string
	ClassifierProvider string
	CallProvider       string

	CapabilityTimeout     time.Duration
	RecordingFetchTimeout time.Duration
	OutboundMaxAttempts   int
	OutboundRetryBackoff  time.Duration

	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	OpenAIWhisperModel string

	DeepgramAPIKey string
	DeepgramModel  string

	ElevenAPIKey  string
	ElevenVoiceID string
	ElevenModelID string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioTTSVoice   string

	TelnyxAPIKey     string
	TelnyxTexmlAppID string
	TelnyxFromNumber string

	VapiWebhookSecret string

	BedrockModelID string
	GeminiAPIKey   string
	GeminiModel    string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ArchiveBucket       string
	LifecycleQueueURL   string
	CallAttemptsTable   string

	// Handoff notifications
	SendGridAPIKey     string
	SendGridFromEmail  string
	SendGridFromName   string
	SESFromEmail       string
	HandoffNotifyEmail string

	AdminJWTSecret   string
	WebhookRateLimit float64
	WebhookBurst     int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		DuplicateCacheTTL: getEnvAsDuration("DUPLICATE_CACHE_TTL", 24*time.Hour),

		STTProvider:        lower(getEnv("STT_PROVIDER", "openai")),
		TTSProvider:        lower(getEnv("TTS_PROVIDER", "twilio")),
		ClassifierProvider: lower(getEnv("CLASSIFIER_PROVIDER", "openai")),
		CallProvider:       lower(getEnv("CALL_PROVIDER", "auto")),

		CapabilityTimeout:     getEnvAsDuration("CAPABILITY_TIMEOUT", 30*time.Second),
		RecordingFetchTimeout: getEnvAsDuration("RECORDING_FETCH_TIMEOUT", 15*time.Second),
		OutboundMaxAttempts:   getEnvAsInt("OUTBOUND_MAX_ATTEMPTS", 2),
		OutboundRetryBackoff:  getEnvAsDuration("OUTBOUND_RETRY_BACKOFF", 0),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIWhisperModel: getEnv("OPENAI_WHISPER_MODEL", "whisper-1"),

		DeepgramAPIKey: getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:  getEnv("DEEPGRAM_MODEL", "general"),

		ElevenAPIKey:  getEnv("ELEVEN_API_KEY", ""),
		ElevenVoiceID: getEnv("ELEVEN_VOICE_ID", "default"),
		ElevenModelID: getEnv("ELEVEN_MODEL_ID", "eleven_multilingual_v2"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioTTSVoice:   getEnv("TWILIO_TTS_VOICE", "Polly.Joanna"),

		TelnyxAPIKey:     getEnv("TELNYX_API_KEY", ""),
		TelnyxTexmlAppID: getEnv("TELNYX_TEXML_APP_ID", ""),
		TelnyxFromNumber: getEnv("TELNYX_FROM_NUMBER", ""),

		VapiWebhookSecret: getEnv("VAPI_WEBHOOK_SECRET", ""),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
		LifecycleQueueURL:   getEnv("LIFECYCLE_QUEUE_URL", ""),
		CallAttemptsTable:   getEnv("CALL_ATTEMPTS_TABLE", ""),

		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:  getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:   getEnv("SENDGRID_FROM_NAME", "Voice Agent"),
		SESFromEmail:       getEnv("SES_FROM_EMAIL", ""),
		HandoffNotifyEmail: getEnv("HANDOFF_NOTIFY_EMAIL", ""),

		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
		WebhookRateLimit: getEnvAsFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookBurst:     getEnvAsInt("WEBHOOK_BURST", 40),
	}
}

// AWSEnabled reports whether any AWS-backed component is configured.
func (c *Config) AWSEnabled() bool {
	return c.ArchiveBucket != "" || c.LifecycleQueueURL != "" || c.CallAttemptsTable != "" ||
		c.BedrockModelID != "" || c.SESFromEmail != ""
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
