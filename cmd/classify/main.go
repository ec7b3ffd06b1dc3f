// Command classify runs transcript text through the configured intent
// classifier. It is a developer tool for checking prompts and provider
// credentials without placing a call.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/voice-agent/cmd/mainconfig"
	"github.com/wolfman30/voice-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-agent/internal/config"
	"github.com/wolfman30/voice-agent/internal/intent"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

func main() {
	cmd := newRootCommand(buildClassifier)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "classify:", err)
		os.Exit(1)
	}
}

// classifierFactory builds the classification capability for a provider
// override. An empty override keeps CLASSIFIER_PROVIDER.
type classifierFactory func(ctx context.Context, provider string) (labeler, error)

type labeler interface {
	Provider() string
	Classify(ctx context.Context, text string) (intent.Label, error)
}

func buildClassifier(ctx context.Context, provider string) (labeler, error) {
	cfg := appconfig.Load()
	if provider != "" {
		cfg.ClassifierProvider = provider
	}
	logger := logging.New(cfg.LogLevel)

	var bedrock *bedrockruntime.Client
	if cfg.BedrockModelID != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if awsCfg != nil {
			bedrock = bedrockruntime.NewFromConfig(*awsCfg)
		}
	}

	backend, chosen, err := bootstrap.BuildClassifierBackend(ctx, cfg, bedrock, logger)
	if err != nil {
		return nil, err
	}
	return intent.NewAdapter(backend, chosen,
		intent.WithTimeout(cfg.CapabilityTimeout),
		intent.WithLogger(logger),
	), nil
}
