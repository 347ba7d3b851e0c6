package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facematch/internal/repository"
)

const defaultStatsWindow = 24 * time.Hour

type VerificationStats interface {
	CountByReason(ctx context.Context, since time.Time) ([]repository.ReasonCount, error)
}

// StatsHandler reports aggregated verdicts from the audit table.
type StatsHandler struct {
	stats  VerificationStats
	logger *slog.Logger
}

func NewStatsHandler(stats VerificationStats, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

type StatsResponse struct {
	Since    time.Time                `json:"since"`
	Total    int64                    `json:"total"`
	Outcomes []repository.ReasonCount `json:"outcomes"`
}

// Get GET /v1/stats?window=24h
func (h *StatsHandler) Get(c *fiber.Ctx) error {
	window := defaultStatsWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return domain.ErrValidationFailed.WithMessage("window must be a positive duration such as 24h")
		}
		window = d
	}

	since := time.Now().UTC().Add(-window)

	counts, err := h.stats.CountByReason(c.UserContext(), since)
	if err != nil {
		h.logger.ErrorContext(c.UserContext(), "failed to aggregate verifications", slog.Any("error", err))
		return domain.ErrServiceUnavailable.WithError(err)
	}

	var total int64
	for _, rc := range counts {
		total += rc.Count
	}

	return c.JSON(StatsResponse{
		Since:    since,
		Total:    total,
		Outcomes: counts,
	})
}
