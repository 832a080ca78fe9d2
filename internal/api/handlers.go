package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fieldrow/companyfix/internal/migration"
)

// ProcessNextPage runs one page of the job and returns the stats snapshot.
// A commit failure is reported with the snapshot so the operator sees how far
// the run got; the cursor stays on the failed page for retry.
func (c *Controller) ProcessNextPage(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}

	snap, err := engine.ProcessNextPage(ctx.Request().Context())
	c.publishCacheMetrics(engine)
	if err != nil {
		c.logger.Error("page processing failed", "job", engine.Job().ID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"stats": snap,
			"error": err.Error(),
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"stats": snap})
}

// ProcessAll starts a full run in the background and returns immediately.
// The engine's page mutex keeps concurrent starts from interleaving.
func (c *Controller) ProcessAll(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}

	engine.Resume()
	go func() {
		if err := engine.ProcessAll(context.Background()); err != nil {
			c.logger.Error("full run failed", "job", engine.Job().ID, "error", err)
		}
		c.publishCacheMetrics(engine)
	}()

	return ctx.JSON(http.StatusAccepted, map[string]any{
		"job":   engine.Job().ID,
		"state": engine.State(),
	})
}

// Pause stops a running loop after the page in flight.
func (c *Controller) Pause(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}
	engine.Pause()
	return ctx.JSON(http.StatusOK, map[string]any{"state": engine.State()})
}

// Resume clears a pending pause request.
func (c *Controller) Resume(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}
	engine.Resume()
	return ctx.JSON(http.StatusOK, map[string]any{"state": engine.State()})
}

// Reset zeroes the job's cursor, counters, audit log and cache.
func (c *Controller) Reset(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}
	engine.Reset()
	c.publishCacheMetrics(engine)
	return ctx.JSON(http.StatusOK, map[string]any{"stats": engine.Stats()})
}

// GetStats returns the current stats snapshot.
func (c *Controller) GetStats(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}

	resp := map[string]any{
		"stats":  engine.Stats(),
		"cursor": engine.Cursor(),
	}
	if total, err := engine.CollectionCount(ctx.Request().Context()); err == nil {
		resp["totalRecords"] = total
	}
	return ctx.JSON(http.StatusOK, resp)
}

// GetLogs returns the most recent audit entries, newest first.
func (c *Controller) GetLogs(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}

	limit := 100
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	return ctx.JSON(http.StatusOK, map[string]any{"entries": engine.RecentLogs(limit)})
}

// GetCacheStats returns the job's reference cache counters.
func (c *Controller) GetCacheStats(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, engine.CacheStats())
}

// ClearCache empties the job's reference cache.
func (c *Controller) ClearCache(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}
	engine.ClearCache()
	c.publishCacheMetrics(engine)
	return ctx.JSON(http.StatusOK, engine.CacheStats())
}

// CleanupCache sweeps TTL-expired entries from the job's cache.
func (c *Controller) CleanupCache(ctx echo.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}
	removed := engine.CleanupCache()
	c.publishCacheMetrics(engine)
	return ctx.JSON(http.StatusOK, map[string]any{
		"removed": removed,
		"stats":   engine.CacheStats(),
	})
}

// GetAllProgress returns completion estimates for every job in display order.
func (c *Controller) GetAllProgress(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.aggregator.All(ctx.Request().Context()))
}

// GetJobProgress returns the completion estimate for one job.
func (c *Controller) GetJobProgress(ctx echo.Context) error {
	jobID := ctx.Param("job")
	if _, ok := c.engines[jobID]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown job: "+jobID)
	}
	return ctx.JSON(http.StatusOK, c.aggregator.Progress(ctx.Request().Context(), jobID))
}

// publishCacheMetrics pushes the engine's cache counters to Prometheus.
func (c *Controller) publishCacheMetrics(engine *migration.Engine) {
	if c.metrics == nil {
		return
	}
	stats := engine.CacheStats()
	c.metrics.Cache.Update(stats.Hits, stats.Misses, stats.Evictions, stats.Size, stats.Efficiency)
}
