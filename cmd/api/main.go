package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/saturnino-fabrica-de-software/facematch/internal/api"
	"github.com/saturnino-fabrica-de-software/facematch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/database"
	"github.com/saturnino-fabrica-de-software/facematch/internal/face"
	"github.com/saturnino-fabrica-de-software/facematch/internal/repository"
	"github.com/saturnino-fabrica-de-software/facematch/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting FaceMatch API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("detector", cfg.ProviderType),
		slog.String("embedder", cfg.EmbedderType),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLogger := audit.NewSlogLogger(logger)

	providers, err := face.NewProviders(ctx, cfg, auditLogger)
	if err != nil {
		return fmt.Errorf("failed to create providers: %w", err)
	}

	opts := []service.VerifierOption{
		service.WithLogger(logger),
		service.WithAuditLogger(auditLogger),
		service.WithProviderName(providers.DetectorName + "/" + providers.EmbedderName),
	}

	deps := &api.Dependencies{
		BodyLimitMB:        cfg.BodyLimitMB,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}

	if cfg.PersistenceEnabled() {
		st, err := database.EnsureSchema(ctx, cfg.DatabaseURL, cfg.AutoMigrate)
		if err != nil {
			return fmt.Errorf("failed to check database schema: %w", err)
		}
		logger.Info("database schema ready", slog.Uint64("version", uint64(st.Current)))

		pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		repo := repository.NewVerificationRepository(pool)
		opts = append(opts, service.WithRecorder(repo))
		deps.Stats = repo
		deps.DB = pool

		logger.Info("verification audit persistence enabled")
	}

	deps.Verifier = service.NewVerifier(providers.Detector, providers.Embedder, cfg.Defaults, opts...)

	router := api.NewRouter(logger, deps)
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped")

	return nil
}
