package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"krakenbot/internal/kraken"
	"krakenbot/internal/models"
	"krakenbot/internal/predict"
)

// MarketService is the public part of the Kraken client
type MarketService interface {
	Asset(ctx context.Context, name string) (kraken.Asset, error)
	Pair(ctx context.Context, base, quote string) (kraken.AssetPair, error)
	Ticker(ctx context.Context, pair kraken.AssetPair) (*kraken.Ticker, error)
}

// Predictor computes forecasts
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (*predict.Prediction, error)
}

// ForecastRecorder counts served forecasts
type ForecastRecorder interface {
	RecordForecast(pair, trend string)
}

// MarketHandlers serve asset lookups and forecasts
type MarketHandlers struct {
	market    MarketService
	predictor Predictor
	recorder  ForecastRecorder
	logger    zerolog.Logger
}

// NewMarketHandlers creates new market handlers. recorder may be nil.
func NewMarketHandlers(market MarketService, predictor Predictor, recorder ForecastRecorder, logger zerolog.Logger) *MarketHandlers {
	return &MarketHandlers{
		market:    market,
		predictor: predictor,
		recorder:  recorder,
		logger:    logger,
	}
}

// Asset looks up an asset by code or altname
func (h *MarketHandlers) Asset() gin.HandlerFunc {
	return func(c *gin.Context) {
		asset, err := h.market.Asset(c.Request.Context(), c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.NewAssetResponse(asset))
	}
}

// Pair resolves a pair and returns it with its ticker
func (h *MarketHandlers) Pair() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		pair, err := h.market.Pair(ctx, c.Param("base"), c.Param("quote"))
		if err != nil {
			respondError(c, err)
			return
		}

		ticker, err := h.market.Ticker(ctx, pair)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"pair":         pair.Name,
			"altname":      pair.AltName,
			"display_name": pair.DisplayName,
			"last":         ticker.LastPrice(),
			"mid":          ticker.Mid(),
			"ticker":       ticker,
		})
	}
}

// Forecast predicts the open price of base/quote
func (h *MarketHandlers) Forecast() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var q models.ForecastQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondValidation(c, err)
			return
		}
		if err := q.Validate(); err != nil {
			respondValidation(c, err)
			return
		}

		req := predict.Request{
			Base:       c.Param("base"),
			Quote:      c.Param("quote"),
			Interval:   q.Interval,
			Horizon:    q.Horizon,
			Regressors: q.RegressorList(),
			Graph:      q.Graph,
			Optimize:   q.Optimize,
		}

		prediction, err := h.predictor.Predict(c.Request.Context(), req)
		if err != nil {
			h.logger.Error().
				Err(err).
				Str("base", req.Base).
				Str("quote", req.Quote).
				Str("request_id", c.GetString("request_id")).
				Dur("duration", time.Since(start)).
				Msg("Forecast failed")
			respondError(c, err)
			return
		}

		if h.recorder != nil {
			h.recorder.RecordForecast(prediction.Pair, string(prediction.Trend))
		}

		c.JSON(http.StatusOK, models.NewForecastResponse(prediction))
	}
}
