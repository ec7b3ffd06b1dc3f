package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/voice-agent/internal/api/router"
	"github.com/wolfman30/voice-agent/internal/archive"
	appconfig "github.com/wolfman30/voice-agent/internal/config"
	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/events"
	"github.com/wolfman30/voice-agent/internal/http/handlers"
	"github.com/wolfman30/voice-agent/internal/intent"
	"github.com/wolfman30/voice-agent/internal/notify"
	"github.com/wolfman30/voice-agent/internal/observability/metrics"
	"github.com/wolfman30/voice-agent/internal/telephony"
	"github.com/wolfman30/voice-agent/internal/transcription"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

// Options carries process-level dependencies built outside the package.
type Options struct {
	// AWS is nil when no AWS-backed component is configured.
	AWS *aws.Config
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Gatherer serves /metrics; defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// App is the assembled call pipeline and its HTTP surface.
type App struct {
	Handler     http.Handler
	Manager     *conversation.Manager
	Initiator   *conversation.OutboundInitiator
	Metrics     *metrics.PipelineMetrics
	Persistence *Persistence
}

// Close releases database and cache connections.
func (a *App) Close() {
	if a.Persistence != nil {
		a.Persistence.Close()
	}
}

// Build selects every capability once from cfg and wires the pipeline.
// A capability whose provider is unknown or missing credentials fails here
// with capability.ErrUnsupportedProviderConfig.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	pm := metrics.NewPipelineMetrics(opts.Registerer)

	var bedrock *bedrockruntime.Client
	if opts.AWS != nil && cfg.BedrockModelID != "" {
		bedrock = bedrockruntime.NewFromConfig(*opts.AWS)
	}

	// Capabilities
	stt, err := BuildTranscriber(cfg)
	if err != nil {
		return nil, err
	}
	backend, classifierProvider, err := BuildClassifierBackend(ctx, cfg, bedrock, logger)
	if err != nil {
		return nil, err
	}

	archiveStore := buildArchive(cfg, opts.AWS, logger)
	var publisher telephony.AudioPublisher
	if archiveStore != nil {
		publisher = archiveStore
	}
	renderer, err := BuildPromptRenderer(cfg, publisher)
	if err != nil {
		return nil, err
	}
	placer, callProvider, err := BuildCallPlacer(cfg, renderer, logger)
	if err != nil {
		return nil, err
	}

	persistence, err := BuildPersistence(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	orchestratorCfg := transcription.Config{
		Transcriber:  stt,
		Provider:     cfg.STTProvider,
		FetchTimeout: cfg.RecordingFetchTimeout,
		STTTimeout:   cfg.CapabilityTimeout,
		Observer:     pm,
		Logger:       logger,
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		orchestratorCfg.Credentials = transcription.Credentials{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		}
	}
	if archiveStore != nil {
		orchestratorCfg.Sink = archiveStore
	}

	classifier := intent.NewAdapter(backend, classifierProvider,
		intent.WithTimeout(cfg.CapabilityTimeout),
		intent.WithObserver(pm),
		intent.WithLogger(logger),
	)

	manager := conversation.NewManager(conversation.ManagerConfig{
		Store:       persistence.Store,
		Guard:       persistence.Guard,
		Transcripts: transcription.NewOrchestrator(orchestratorCfg),
		Classifier:  classifier,
		Listeners:   buildListeners(cfg, opts.AWS, archiveStore, logger),
		Metrics:     pm,
		Logger:      logger,
	})

	app := &App{Manager: manager, Metrics: pm, Persistence: persistence}

	var starter handlers.OutboundStarter
	if placer != nil {
		initCfg := conversation.InitiatorConfig{
			Manager:  manager,
			Placer:   placer,
			Provider: callProvider,
			Policy: conversation.RetryPolicy{
				MaxAttempts: cfg.OutboundMaxAttempts,
				Backoff:     cfg.OutboundRetryBackoff,
			},
			Timeout: cfg.CapabilityTimeout,
			Logger:  logger,
		}
		if opts.AWS != nil && cfg.CallAttemptsTable != "" {
			initCfg.Attempts = telephony.NewDynamoAttemptLog(dynamodb.NewFromConfig(*opts.AWS), cfg.CallAttemptsTable)
		}
		app.Initiator = conversation.NewOutboundInitiator(initCfg)
		starter = app.Initiator
	}

	webhookCfg := handlers.WebhookConfig{
		Pipeline:      manager,
		PublicBaseURL: cfg.PublicBaseURL,
		VapiSecret:    cfg.VapiWebhookSecret,
		Metrics:       pm,
		Logger:        logger,
	}
	if cfg.TwilioAuthToken != "" {
		webhookCfg.TwilioValidator = telephony.NewTwilioSignatureValidator(cfg.TwilioAuthToken)
	}

	app.Handler = router.New(&router.Config{
		Logger:           logger,
		Webhooks:         handlers.NewWebhookHandler(webhookCfg),
		Calls:            handlers.NewCallsHandler(starter, manager, logger),
		ConfigHandler:    handlers.ConfigHandler(cfg),
		MetricsHandler:   promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}),
		AdminAuthSecret:  cfg.AdminJWTSecret,
		WebhookRateLimit: cfg.WebhookRateLimit,
		WebhookBurst:     cfg.WebhookBurst,
	})

	logger.Info("call pipeline ready",
		"stt", cfg.STTProvider,
		"tts", cfg.TTSProvider,
		"classifier", classifierProvider,
		"call_provider", callProvider,
		"outbound_enabled", placer != nil,
	)
	return app, nil
}

func buildArchive(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *archive.Store {
	if awsCfg == nil || strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return nil
	}
	client := s3.NewFromConfig(*awsCfg)
	return archive.NewStore(client, s3.NewPresignClient(client), cfg.ArchiveBucket, logger)
}

// buildListeners assembles the post-commit side effects that are configured.
func buildListeners(cfg *appconfig.Config, awsCfg *aws.Config, archiveStore *archive.Store, logger *logging.Logger) []conversation.Listener {
	var listeners []conversation.Listener
	if archiveStore != nil {
		listeners = append(listeners, archiveStore)
	}
	if awsCfg != nil && cfg.LifecycleQueueURL != "" {
		listeners = append(listeners, events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.LifecycleQueueURL, logger))
	}
	if to := strings.TrimSpace(cfg.HandoffNotifyEmail); to != "" {
		listeners = append(listeners, notify.NewHandoffNotifier(buildEmailSender(cfg, awsCfg, logger), to, logger))
	}
	return listeners
}

// buildEmailSender prefers SendGrid, then SES, then the logging stub.
func buildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		return sg
	}
	if awsCfg != nil && cfg.SESFromEmail != "" {
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	logger.Warn("no email provider configured; handoff notifications are logged only")
	return notify.NewStubEmailSender(logger)
}
