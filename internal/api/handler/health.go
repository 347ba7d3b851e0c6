package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facematch/internal/database"
	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
)

const Version = "0.1.0"

// HealthHandler serves liveness and readiness probes. db is nil when
// audit persistence is disabled.
type HealthHandler struct {
	db database.Pinger
}

func NewHealthHandler(db database.Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.db == nil {
		return c.JSON(HealthResponse{
			Status:   "ready",
			Database: "disabled",
		})
	}

	if err := database.HealthCheck(c.UserContext(), h.db); err != nil {
		return domain.ErrServiceUnavailable.WithMessage("database is not reachable").WithError(err)
	}

	return c.JSON(HealthResponse{
		Status:   "ready",
		Database: "ok",
	})
}
