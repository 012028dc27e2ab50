package models

import (
	"time"

	"github.com/shopspring/decimal"

	"krakenbot/internal/entity"
	"krakenbot/internal/forecast"
	"krakenbot/internal/kraken"
	"krakenbot/internal/predict"
	"krakenbot/internal/rest"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(errorCode, message, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// HealthResponse represents the health status of the service
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  int64  `json:"uptime"`
}

// HealthCheck represents a single health check result
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReadinessResponse represents the readiness status of the service
type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]HealthCheck `json:"checks"`
}

// BalanceResponse lists non-zero balances
type BalanceResponse struct {
	Balances rest.Balances `json:"balances"`
	Count    int           `json:"count"`
}

// OrdersResponse lists orders keyed by transaction id
type OrdersResponse struct {
	Orders rest.Orders `json:"orders"`
	Count  int         `json:"count"`
}

// NewOrdersResponse wraps orders, never serializing a nil map
func NewOrdersResponse(orders rest.Orders) *OrdersResponse {
	if orders == nil {
		orders = rest.Orders{}
	}
	return &OrdersResponse{Orders: orders, Count: len(orders)}
}

// AccountResponse combines balances and working orders
type AccountResponse struct {
	Balances   rest.Balances   `json:"balances"`
	OpenOrders *OrdersResponse `json:"open_orders"`
}

// NewAccountResponse wraps an account snapshot, never serializing nil maps
func NewAccountResponse(balances rest.Balances, open rest.Orders) *AccountResponse {
	if balances == nil {
		balances = rest.Balances{}
	}
	return &AccountResponse{Balances: balances, OpenOrders: NewOrdersResponse(open)}
}

// AssetResponse describes one asset
type AssetResponse struct {
	Name            string `json:"name"`
	AltName         string `json:"altname"`
	AssetClass      string `json:"aclass"`
	Decimals        int    `json:"decimals"`
	DisplayDecimals int    `json:"display_decimals"`
}

// NewAssetResponse converts a catalog asset
func NewAssetResponse(a kraken.Asset) *AssetResponse {
	return &AssetResponse{
		Name:            a.Name,
		AltName:         a.AltName,
		AssetClass:      a.AClass,
		Decimals:        a.Decimals,
		DisplayDecimals: a.DisplayDecimals,
	}
}

// ForecastResponse is the body of a forecast request
type ForecastResponse struct {
	RunID       int64                `json:"run_id,omitempty"`
	Pair        string               `json:"pair"`
	DisplayName string               `json:"display_name"`
	Interval    int                  `json:"interval"`
	Horizon     int                  `json:"horizon"`
	Model       string               `json:"model"`
	Window      int                  `json:"window"`
	Trend       string               `json:"trend"`
	Slope       float64              `json:"slope"`
	TrendSlope  decimal.Decimal      `json:"trend_slope"`
	LastValue   float64              `json:"last_value"`
	Points      []forecast.Estimate  `json:"points"`
	Regressors  map[string][]float64 `json:"regressors,omitempty"`
	Ignored     []string             `json:"ignored_regressors,omitempty"`
	ChartPath   string               `json:"chart_path,omitempty"`
	Scores      []forecast.Score     `json:"scores,omitempty"`
}

// NewForecastResponse flattens a prediction
func NewForecastResponse(p *predict.Prediction) *ForecastResponse {
	return &ForecastResponse{
		RunID:       p.RunID,
		Pair:        p.Pair,
		DisplayName: p.DisplayName,
		Interval:    p.Interval,
		Horizon:     p.Horizon,
		Model:       p.Forecast.Model,
		Window:      p.Forecast.Window,
		Trend:       string(p.Trend),
		Slope:       p.Forecast.Slope,
		TrendSlope:  p.TrendSlope,
		LastValue:   p.LastValue,
		Points:      p.Forecast.Points,
		Regressors:  p.Forecast.Regressors,
		Ignored:     p.Ignored,
		ChartPath:   p.ChartPath,
		Scores:      p.Scores,
	}
}

// ForecastRunResponse is a stored forecast run
type ForecastRunResponse struct {
	ID        int64     `json:"id"`
	Pair      string    `json:"pair"`
	Interval  int       `json:"interval"`
	Horizon   int       `json:"horizon"`
	Model     string    `json:"model"`
	Trend     string    `json:"trend"`
	Slope     float64   `json:"slope"`
	LastValue float64   `json:"last_value"`
	ChartPath string    `json:"chart_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewForecastRunResponse converts a stored run
func NewForecastRunResponse(r entity.ForecastRun) ForecastRunResponse {
	return ForecastRunResponse{
		ID:        r.Id,
		Pair:      r.Pair,
		Interval:  r.Interval,
		Horizon:   r.Horizon,
		Model:     r.Model,
		Trend:     r.Trend,
		Slope:     r.Slope,
		LastValue: r.LastValue,
		ChartPath: r.ChartPath,
		CreatedAt: r.CreatedAt,
	}
}

// ListResponse represents a list response
type ListResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

// NewListResponse creates a new list response
func NewListResponse(data interface{}, count int) *ListResponse {
	return &ListResponse{
		Data:  data,
		Count: count,
	}
}
