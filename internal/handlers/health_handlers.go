package handlers

import (
	"net/http"
	"time"

	"talentflow/internal/caching"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// HealthHandlers exposes liveness and readiness probes.
type HealthHandlers struct {
	pool  *pgxpool.Pool
	cache caching.CacheService
}

func NewHealthHandlers(pool *pgxpool.Pool, cache caching.CacheService) *HealthHandlers {
	return &HealthHandlers{pool: pool, cache: cache}
}

// Health handles GET /health
func (h *HealthHandlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready. It fails when the database is
// unreachable; redis is not required for readiness.
func (h *HealthHandlers) Ready(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.pool.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "database unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// Detailed handles GET /health/detailed
func (h *HealthHandlers) Detailed(c echo.Context) error {
	ctx := c.Request().Context()
	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	status := http.StatusOK

	if err := h.pool.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, map[string]interface{}{
		"status": http.StatusText(status),
		"time":   time.Now().UTC(),
		"checks": checks,
	})
}
