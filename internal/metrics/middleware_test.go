package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type mockRecorder struct {
	requests  map[string]int
	durations map[string][]float64
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		requests:  make(map[string]int),
		durations: make(map[string][]float64),
	}
}

func (m *mockRecorder) RecordHTTPRequest(method, route string, status int) {
	m.requests[method+" "+route+" "+strconv.Itoa(status)]++
}

func (m *mockRecorder) RecordHTTPDuration(method, route string, duration float64) {
	key := method + " " + route
	m.durations[key] = append(m.durations[key], duration)
}

func newTestRouter(recorder HTTPRecorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(recorder))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/forecast/:base/:quote", func(c *gin.Context) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream"})
	})
	return router
}

func TestMiddleware_RecordsHTTPMetrics(t *testing.T) {
	recorder := newMockRecorder()
	router := newTestRouter(recorder)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, recorder.requests["GET /health 200"])
	assert.Len(t, recorder.durations["GET /health"], 1)
	assert.GreaterOrEqual(t, recorder.durations["GET /health"][0], 0.0)
}

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	recorder := newMockRecorder()
	router := newTestRouter(recorder)

	for _, path := range []string{"/api/forecast/XBT/USD", "/api/forecast/ETH/EUR"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2, recorder.requests["GET /api/forecast/:base/:quote 502"])
	assert.Len(t, recorder.requests, 1)
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	recorder := newMockRecorder()
	router := newTestRouter(recorder)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/1/2/3", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, recorder.requests["GET unmatched 404"])
}

func TestMiddleware_WithCollector(t *testing.T) {
	collector := NewCollector()
	router := newTestRouter(collector)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, int64(1), findCounter(collector.GetSnapshot(), "http_requests_total",
		map[string]string{"method": "GET", "route": "/health", "status": "200"}))
}
