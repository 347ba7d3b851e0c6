package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facematch/internal/config"
	"github.com/saturnino-fabrica-de-software/facematch/internal/database"
	"github.com/saturnino-fabrica-de-software/facematch/internal/repository"
)

type statsOutput struct {
	Since    time.Time                `json:"since"`
	Total    int64                    `json:"total"`
	Outcomes []repository.ReasonCount `json:"outcomes"`
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count recorded verdicts per outcome",
		Long:  `Aggregate the verification records stored by the API. Requires DATABASE_URL.`,
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	cmd.Flags().Duration("window", 24*time.Hour, "Look-back window")

	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	window, err := cmd.Flags().GetDuration("window")
	if err != nil {
		return err
	}
	if window <= 0 {
		return errors.New("--window must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.PersistenceEnabled() {
		return errors.New("DATABASE_URL is not set")
	}

	pool, err := database.NewPool(cmd.Context(), database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer pool.Close()

	since := time.Now().UTC().Add(-window)
	counts, err := repository.NewVerificationRepository(pool).CountByReason(cmd.Context(), since)
	if err != nil {
		return err
	}

	out := statsOutput{Since: since, Outcomes: counts}
	for _, c := range counts {
		out.Total += c.Count
	}

	return writeJSON(cmd.OutOrStdout(), out)
}
