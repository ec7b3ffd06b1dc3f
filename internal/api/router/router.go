package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/voice-agent/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/voice-agent/internal/http/middleware"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhooks       *handlers.WebhookHandler
	Calls          *handlers.CallsHandler
	ConfigHandler  http.HandlerFunc
	MetricsHandler http.Handler

	AdminAuthSecret string

	// Webhook rate limiting per client IP. Disabled when WebhookRateLimit <= 0.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Vendor webhooks
	if cfg.Webhooks != nil {
		r.Group(func(hooks chi.Router) {
			if cfg.WebhookRateLimit > 0 {
				burst := cfg.WebhookBurst
				if burst <= 0 {
					burst = int(cfg.WebhookRateLimit) + 1
				}
				hooks.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, burst))
			}
			hooks.Post("/webhooks/twilio", cfg.Webhooks.Twilio)
			hooks.Post("/webhook/twilio", cfg.Webhooks.Twilio)
			hooks.Post("/webhooks/vapi", cfg.Webhooks.Vapi)
			hooks.Post("/call/inbound", cfg.Webhooks.LegacyInbound)
		})
	}

	if cfg.Calls != nil {
		r.Post("/calls/outbound", cfg.Calls.StartOutbound)
		r.Post("/call/outbound", cfg.Calls.StartOutbound)
		r.Get("/conversations/{id}", cfg.Calls.GetConversation)
	}

	// Admin
	if cfg.ConfigHandler != nil {
		r.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/config", cfg.ConfigHandler)
		})
	}

	return r
}
