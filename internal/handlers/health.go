package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"krakenbot/internal/kraken"
	"krakenbot/internal/models"
)

// ReadinessChecker interface for checking service readiness
type ReadinessChecker interface {
	Check(ctx context.Context) (map[string]models.HealthCheck, bool, error)
}

// MetricsCollector interface for collecting Prometheus metrics
type MetricsCollector interface {
	Collect() (string, error)
}

// CheckFunc reports the state of one dependency
type CheckFunc func(ctx context.Context) (models.HealthCheck, bool)

// Checks runs named checks; the service is ready when all pass
type Checks map[string]CheckFunc

// Check implements ReadinessChecker
func (cs Checks) Check(ctx context.Context) (map[string]models.HealthCheck, bool, error) {
	results := make(map[string]models.HealthCheck, len(cs))
	ready := true
	for name, check := range cs {
		result, ok := check(ctx)
		results[name] = result
		ready = ready && ok
	}
	return results, ready, nil
}

// StatusSource reports the exchange status
type StatusSource interface {
	Status(ctx context.Context) (*kraken.SystemStatus, error)
}

// KrakenStatusCheck passes while Kraken reports itself online
func KrakenStatusCheck(source StatusSource) CheckFunc {
	return func(ctx context.Context) (models.HealthCheck, bool) {
		status, err := source.Status(ctx)
		if err != nil {
			return models.HealthCheck{Status: "unhealthy", Message: "Kraken unreachable", Error: err.Error()}, false
		}
		if !status.Online() {
			return models.HealthCheck{Status: "degraded", Message: "Kraken status: " + status.Status}, false
		}
		return models.HealthCheck{Status: "healthy", Message: "online"}, true
	}
}

// PingCheck passes while ping succeeds
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) (models.HealthCheck, bool) {
		if err := ping(ctx); err != nil {
			return models.HealthCheck{Status: "unhealthy", Error: err.Error()}, false
		}
		return models.HealthCheck{Status: "healthy"}, true
	}
}

// HealthHandlers contains health check handlers
type HealthHandlers struct {
	version   string
	startTime time.Time
}

// NewHealthHandlers creates new health handlers
func NewHealthHandlers(version string, startTime time.Time) *HealthHandlers {
	return &HealthHandlers{
		version:   version,
		startTime: startTime,
	}
}

// HealthCheck returns a handler for health check endpoint
func (h *HealthHandlers) HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "healthy",
			Version: h.version,
			Uptime:  int64(time.Since(h.startTime).Seconds()),
		})
	}
}

// Readiness returns a handler for readiness check endpoint
func (h *HealthHandlers) Readiness(checker ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks, ready, err := checker.Check(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, models.ReadinessResponse{
				Ready: false,
				Checks: map[string]models.HealthCheck{
					"error": {
						Status:  "unhealthy",
						Message: "Failed to check readiness",
						Error:   err.Error(),
					},
				},
			})
			return
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, models.ReadinessResponse{
			Ready:  ready,
			Checks: checks,
		})
	}
}

// Metrics returns a handler for Prometheus metrics endpoint
func (h *HealthHandlers) Metrics(collector MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics, err := collector.Collect()
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
				"METRICS_ERROR",
				"Failed to collect metrics",
				c.GetString("request_id"),
			))
			return
		}

		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(metrics))
	}
}
