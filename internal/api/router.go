package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/facematch/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/facematch/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/facematch/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facematch/internal/database"
)

type Dependencies struct {
	Verifier handler.FaceService
	// Stats and DB are nil when audit persistence is disabled
	Stats handler.VerificationStats
	DB    database.Pinger

	BodyLimitMB        int
	RateLimitPerMinute int
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	bodyLimit := deps.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 10
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "FaceMatch API",
		// two images plus multipart overhead
		BodyLimit: 2*bodyLimit*1024*1024 + 64*1024,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.RequestContext())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	healthHandler := handler.NewHealthHandler(r.deps.DB)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max: r.deps.RateLimitPerMinute,
	})
	v1.Use(r.rateLimiter.Handler())

	faceHandler := handler.NewFaceHandler(r.deps.Verifier, r.logger)
	if r.deps.BodyLimitMB > 0 {
		faceHandler.MaxImageSize = int64(r.deps.BodyLimitMB) * 1024 * 1024
	}
	v1.Post("/detect", faceHandler.Detect)
	v1.Post("/verify", faceHandler.Verify)
	v1.Post("/verify_single", faceHandler.VerifySingle)
	v1.Post("/liveness", faceHandler.CheckLiveness)

	if r.deps.Stats != nil {
		statsHandler := handler.NewStatsHandler(r.deps.Stats, r.logger)
		v1.Get("/stats", statsHandler.Get)
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
