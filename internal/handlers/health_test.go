package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krakenbot/internal/kraken"
	"krakenbot/internal/models"
)

func serve(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealthCheckHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("returns 200 with health status", func(t *testing.T) {
		router := gin.New()
		h := NewHealthHandlers("1.0.0", time.Now().Add(-5*time.Second))
		router.GET("/health", h.HealthCheck())

		w := serve(router, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp models.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "1.0.0", resp.Version)
		assert.GreaterOrEqual(t, resp.Uptime, int64(5))
	})

	t.Run("includes correct uptime", func(t *testing.T) {
		router := gin.New()
		h := NewHealthHandlers("1.0.0", time.Now().Add(-1*time.Hour))
		router.GET("/health", h.HealthCheck())

		var resp models.HealthResponse
		require.NoError(t, json.Unmarshal(serve(router, http.MethodGet, "/health").Body.Bytes(), &resp))
		assert.GreaterOrEqual(t, resp.Uptime, int64(3599))
		assert.LessOrEqual(t, resp.Uptime, int64(3601))
	})
}

func TestReadinessHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("returns 200 when all checks pass", func(t *testing.T) {
		router := gin.New()
		checker := &mockReadinessChecker{
			checks: map[string]models.HealthCheck{
				"kraken":   {Status: "healthy", Message: "online"},
				"database": {Status: "healthy"},
			},
			ready: true,
		}
		router.GET("/ready", NewHealthHandlers("1.0.0", time.Now()).Readiness(checker))

		w := serve(router, http.MethodGet, "/ready")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp models.ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Ready)
		assert.Len(t, resp.Checks, 2)
	})

	t.Run("returns 503 when not ready", func(t *testing.T) {
		router := gin.New()
		checker := &mockReadinessChecker{
			checks: map[string]models.HealthCheck{
				"kraken": {Status: "degraded", Message: "Kraken status: maintenance"},
			},
			ready: false,
		}
		router.GET("/ready", NewHealthHandlers("1.0.0", time.Now()).Readiness(checker))

		w := serve(router, http.MethodGet, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp models.ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Ready)
		assert.Equal(t, "degraded", resp.Checks["kraken"].Status)
	})

	t.Run("handles checker errors gracefully", func(t *testing.T) {
		router := gin.New()
		router.GET("/ready", NewHealthHandlers("1.0.0", time.Now()).Readiness(&mockReadinessChecker{err: assert.AnError}))

		w := serve(router, http.MethodGet, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp models.ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Ready)
		assert.Contains(t, resp.Checks, "error")
	})
}

func TestChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("kraken online", func(t *testing.T) {
		checks := Checks{"kraken": KrakenStatusCheck(&mockStatusSource{status: "online"})}
		results, ready, err := checks.Check(ctx)
		require.NoError(t, err)
		assert.True(t, ready)
		assert.Equal(t, "healthy", results["kraken"].Status)
	})

	t.Run("kraken in maintenance", func(t *testing.T) {
		checks := Checks{"kraken": KrakenStatusCheck(&mockStatusSource{status: "maintenance"})}
		results, ready, err := checks.Check(ctx)
		require.NoError(t, err)
		assert.False(t, ready)
		assert.Equal(t, "degraded", results["kraken"].Status)
		assert.Contains(t, results["kraken"].Message, "maintenance")
	})

	t.Run("kraken unreachable and database fine", func(t *testing.T) {
		checks := Checks{
			"kraken":   KrakenStatusCheck(&mockStatusSource{err: errors.New("dial tcp: refused")}),
			"database": PingCheck(func(context.Context) error { return nil }),
		}
		results, ready, err := checks.Check(ctx)
		require.NoError(t, err)
		assert.False(t, ready)
		assert.Equal(t, "unhealthy", results["kraken"].Status)
		assert.Equal(t, "dial tcp: refused", results["kraken"].Error)
		assert.Equal(t, "healthy", results["database"].Status)
	})

	t.Run("database down", func(t *testing.T) {
		checks := Checks{"database": PingCheck(func(context.Context) error { return errors.New("locked") })}
		results, ready, _ := checks.Check(ctx)
		assert.False(t, ready)
		assert.Equal(t, "locked", results["database"].Error)
	})
}

func TestMetricsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("returns Prometheus metrics", func(t *testing.T) {
		router := gin.New()
		collector := &mockMetricsCollector{
			metrics: "# HELP kraken_calls_total Total number of Kraken API calls by outcome\n" +
				"# TYPE kraken_calls_total counter\n" +
				`kraken_calls_total{endpoint="/0/public/Time",outcome="ok"} 3` + "\n",
		}
		router.GET("/metrics", NewHealthHandlers("1.0.0", time.Now()).Metrics(collector))

		w := serve(router, http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		assert.Contains(t, w.Body.String(), "kraken_calls_total")
	})

	t.Run("handles collector errors", func(t *testing.T) {
		router := gin.New()
		router.GET("/metrics", NewHealthHandlers("1.0.0", time.Now()).Metrics(&mockMetricsCollector{err: assert.AnError}))

		assert.Equal(t, http.StatusInternalServerError, serve(router, http.MethodGet, "/metrics").Code)
	})
}

type mockReadinessChecker struct {
	checks map[string]models.HealthCheck
	ready  bool
	err    error
}

func (m *mockReadinessChecker) Check(context.Context) (map[string]models.HealthCheck, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	return m.checks, m.ready, nil
}

type mockMetricsCollector struct {
	metrics string
	err     error
}

func (m *mockMetricsCollector) Collect() (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.metrics, nil
}

type mockStatusSource struct {
	status string
	err    error
}

func (m *mockStatusSource) Status(context.Context) (*kraken.SystemStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &kraken.SystemStatus{Status: m.status, Timestamp: "2021-03-25T10:00:00Z"}, nil
}
