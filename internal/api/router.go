package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clanforge/clan-registry/internal/api/handler"
	"github.com/clanforge/clan-registry/internal/api/middleware"
	"github.com/clanforge/clan-registry/internal/core/ports"
)

// RouterOptions carries everything the ops/ingest surface needs.
type RouterOptions struct {
	Dispatcher    handler.UpdateDispatcher
	Backend       ports.Backend
	RecordsPath   string
	Redis         *redis.Client // nil when dedup is disabled
	AdapterSecret string
	Logger        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(opts RouterOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(opts.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("clanregistry"))

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(opts.Backend, opts.RecordsPath, opts.Redis)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Adapter seam (shared secret required) ---
	updateHandler := handler.NewUpdateHandler(opts.Dispatcher)
	v1 := e.Group("/v1", middleware.SharedSecret(opts.AdapterSecret))
	v1.POST("/updates", updateHandler.Receive)

	return e
}
