package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facematch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/face"
	"github.com/saturnino-fabrica-de-software/facematch/internal/service"
)

// newVerifier builds the pipeline from the environment. Logs go to stderr.
func newVerifier(cmd *cobra.Command) (*service.Verifier, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, auditLogger := cliLoggers(cmd, cfg.Environment)

	providers, err := face.NewProviders(cmd.Context(), cfg, auditLogger)
	if err != nil {
		return nil, fmt.Errorf("create providers: %w", err)
	}

	return service.NewVerifier(providers.Detector, providers.Embedder, cfg.Defaults,
		service.WithLogger(logger),
		service.WithAuditLogger(auditLogger),
		service.WithProviderName(providers.DetectorName+"/"+providers.EmbedderName),
	), nil
}

func cliLoggers(cmd *cobra.Command, env string) (*slog.Logger, audit.Logger) {
	if mustGetBool(cmd, "verbose") {
		logger := config.NewLoggerWithWriter(cmd.ErrOrStderr(), env)
		return logger, audit.NewSlogLogger(logger)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	return logger, &audit.NoOpLogger{}
}

func readImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
