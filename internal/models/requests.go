package models

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"krakenbot/internal/kraken"
)

// MaxHorizon caps how far ahead the API will forecast
const MaxHorizon = 720

// ForecastQuery is the query string of GET /api/forecast/:base/:quote
type ForecastQuery struct {
	Interval   int    `form:"interval"`
	Horizon    int    `form:"horizon"`
	Regressors string `form:"regressors"` // comma separated candle columns
	Graph      bool   `form:"graph"`
	Optimize   bool   `form:"optimize"`
}

// Validate validates the forecast query
func (q *ForecastQuery) Validate() error {
	if q.Interval != 0 && !kraken.IsValidInterval(q.Interval) {
		return fmt.Errorf("interval must be one of %v", kraken.ValidIntervals)
	}
	if q.Horizon < 0 || q.Horizon > MaxHorizon {
		return fmt.Errorf("horizon must be between 1 and %d", MaxHorizon)
	}
	return nil
}

// RegressorList splits the regressors parameter
func (q *ForecastQuery) RegressorList() []string {
	if strings.TrimSpace(q.Regressors) == "" {
		return nil
	}
	names := lo.Map(strings.Split(q.Regressors, ","), func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
	return lo.Compact(names)
}

// ClosedOrdersQuery is the query string of GET /api/orders/closed
type ClosedOrdersQuery struct {
	UserRef int64 `form:"userref"`
}

// ForecastRunsQuery lists stored forecast runs
type ForecastRunsQuery struct {
	Pair  string `form:"pair"`
	Limit int    `form:"limit"`
}

// Validate validates the runs query
func (q *ForecastRunsQuery) Validate() error {
	if q.Limit < 0 || q.Limit > 500 {
		return fmt.Errorf("limit must be between 0 and 500")
	}
	return nil
}

// Normalize normalizes the request data
func (q *ForecastRunsQuery) Normalize() {
	q.Pair = strings.ToUpper(strings.TrimSpace(q.Pair))
	if q.Limit == 0 {
		q.Limit = 50
	}
}
