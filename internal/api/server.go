// Package api exposes the operator HTTP surface controlling the repair engines.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fieldrow/companyfix/internal/migration"
	"github.com/fieldrow/companyfix/internal/observability"
	"github.com/fieldrow/companyfix/internal/progress"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	engines    map[string]*migration.Engine
	aggregator *progress.Aggregator
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates the controller and registers all routes.
func New(engines map[string]*migration.Engine, aggregator *progress.Aggregator, metrics *observability.Metrics, logger *slog.Logger) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:       e,
		engines:    engines,
		aggregator: aggregator,
		metrics:    metrics,
		logger:     logger,
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v1")

	jobs := c.Group.Group("/migration/:job")
	jobs.POST("/next", c.ProcessNextPage)
	jobs.POST("/all", c.ProcessAll)
	jobs.POST("/pause", c.Pause)
	jobs.POST("/resume", c.Resume)
	jobs.POST("/reset", c.Reset)
	jobs.GET("/stats", c.GetStats)
	jobs.GET("/logs", c.GetLogs)
	jobs.GET("/cache/stats", c.GetCacheStats)
	jobs.POST("/cache/clear", c.ClearCache)
	jobs.POST("/cache/cleanup", c.CleanupCache)

	c.Group.GET("/progress", c.GetAllProgress)
	c.Group.GET("/progress/:job", c.GetJobProgress)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
	c.Echo.GET("/healthz", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start serves the API until Shutdown is called.
func (c *Controller) Start(host, port string) error {
	addr := net.JoinHostPort(host, port)
	c.logger.Info("operator API listening", "addr", addr)
	if err := c.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}

// engine resolves the engine for the :job path parameter.
func (c *Controller) engine(ctx echo.Context) (*migration.Engine, error) {
	jobID := ctx.Param("job")
	engine, ok := c.engines[jobID]
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown job: "+jobID)
	}
	return engine, nil
}
