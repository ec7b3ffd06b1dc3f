package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/voice-agent/cmd/mainconfig"
	"github.com/wolfman30/voice-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-agent/internal/config"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voice-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(startupCtx, cfg)
	if err != nil {
		return err
	}

	app, err := bootstrap.Build(startupCtx, cfg, logger, bootstrap.Options{AWS: awsCfg})
	if err != nil {
		return err
	}
	defer app.Close()

	srv := newServer(cfg, app.Handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server...")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newServer sizes timeouts for a synchronous pipeline: one webhook may wait
// on a recording fetch, speech-to-text and classification in sequence.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	writeTimeout := cfg.RecordingFetchTimeout + 2*cfg.CapabilityTimeout + 5*time.Second
	if writeTimeout < 15*time.Second {
		writeTimeout = 15 * time.Second
	}
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
