package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"krakenbot/internal/entity"
	"krakenbot/internal/kraken"
	"krakenbot/internal/models"
)

// CatalogRefresher reloads the asset catalog from Kraken
type CatalogRefresher interface {
	RefreshCatalog(ctx context.Context) (*kraken.Catalog, error)
}

// RunLister reads stored forecast runs
type RunLister interface {
	List(ctx context.Context, pair string, limit int) ([]entity.ForecastRun, error)
	Latest(ctx context.Context, pair string) (entity.ForecastRun, error)
}

// StatsResetter clears collected metrics
type StatsResetter interface {
	Reset()
}

// AdminHandlers contains handlers for administrative operations.
// Any dependency may be nil; its routes then answer 501.
type AdminHandlers struct {
	catalog CatalogRefresher
	runs    RunLister
	stats   StatsResetter
}

// NewAdminHandlers creates new admin handlers
func NewAdminHandlers(catalog CatalogRefresher, runs RunLister, stats StatsResetter) *AdminHandlers {
	return &AdminHandlers{
		catalog: catalog,
		runs:    runs,
		stats:   stats,
	}
}

func notConfigured(c *gin.Context, what string) {
	c.JSON(http.StatusNotImplemented, models.NewErrorResponse(
		"NOT_CONFIGURED",
		what+" is not configured",
		c.GetString("request_id"),
	))
}

// RefreshCatalog reloads assets and pairs
func (h *AdminHandlers) RefreshCatalog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.catalog == nil {
			notConfigured(c, "catalog")
			return
		}

		catalog, err := h.catalog.RefreshCatalog(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		assets, pairs := catalog.Len()
		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"assets": assets,
			"pairs":  pairs,
		})
	}
}

// ListForecasts returns stored forecast runs, newest first
func (h *AdminHandlers) ListForecasts() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.runs == nil {
			notConfigured(c, "storage")
			return
		}

		var q models.ForecastRunsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondValidation(c, err)
			return
		}
		if err := q.Validate(); err != nil {
			respondValidation(c, err)
			return
		}
		q.Normalize()

		runs, err := h.runs.List(c.Request.Context(), q.Pair, q.Limit)
		if err != nil {
			respondError(c, err)
			return
		}

		data := lo.Map(runs, func(r entity.ForecastRun, _ int) models.ForecastRunResponse {
			return models.NewForecastRunResponse(r)
		})
		c.JSON(http.StatusOK, models.NewListResponse(data, len(data)))
	}
}

// LatestForecast returns the newest stored run for one pair
func (h *AdminHandlers) LatestForecast() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.runs == nil {
			notConfigured(c, "storage")
			return
		}

		pair := strings.ToUpper(strings.TrimSpace(c.Param("pair")))
		run, err := h.runs.Latest(c.Request.Context(), pair)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.NewForecastRunResponse(run))
	}
}

// ResetStats resets all metrics
func (h *AdminHandlers) ResetStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.stats == nil {
			notConfigured(c, "metrics")
			return
		}

		h.stats.Reset()
		c.JSON(http.StatusOK, gin.H{
			"message": "Statistics reset successfully",
			"status":  "success",
		})
	}
}
