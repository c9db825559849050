package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"testgen/app/config"
	"testgen/app/usecase"
	"testgen/internal/domain/repository"
	"testgen/internal/infrastructure/metrics"
	"testgen/internal/infrastructure/store/filesystem"
	"testgen/internal/infrastructure/transport"
	"testgen/internal/infrastructure/validator"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := newLogger(os.Stdout, cfg.SlogLevel())

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	recorder := metrics.NewRecorder(cfg.Metrics.Capacity, logger)

	llmClient, err := newLLMClient(ctx, cfg, recorder, logger)
	if err != nil {
		logger.Error("llm client init failed", "err", err)
		return err
	}

	// Repositories
	var (
		artifactRepo repository.ArtifactRepository
		artifactSvc  usecase.ArtifactUseCase
	)
	if cfg.Artifacts.Dir != "" {
		repo, err := filesystem.NewArtifactRepository(cfg.Artifacts.Dir)
		if err != nil {
			logger.Error("artifact repository init failed", "dir", cfg.Artifacts.Dir, "err", err)
			return err
		}
		artifactRepo = repo
		artifactSvc = usecase.NewArtifactService(repo)
	}

	// Usecases / services
	validationSvc := usecase.NewValidationService(validator.NewAllureValidator(), logger)
	generationSvc := usecase.NewGenerationService(llmClient, validationSvc, artifactRepo, logger)

	// Transport (HTTP handlers)
	handler := transport.NewHandler(transport.Services{
		Generation:     generationSvc,
		Validation:     validationSvc,
		Artifacts:      artifactSvc,
		Metrics:        recorder,
		LLM:            llmClient,
		StreamInterval: cfg.Metrics.StreamInterval,
	}, logger, prometheus.DefaultRegisterer)

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", addr, "model", llmClient.Model(), "cache", cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	// OS signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	logger.Info("closing cache store")
	cancel()
	if err := llmClient.Close(shutdownCtx); err != nil {
		logger.Error("cache store close error", "err", err)
	}

	logger.Info("service stopped")
	return nil
}
