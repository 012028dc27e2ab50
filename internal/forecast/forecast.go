// Package forecast predicts the near-term course of a price series with a
// confidence band.
package forecast

import (
	"context"
	"errors"
	"time"
)

// ErrNotEnoughData is returned when a series is too short to fit
var ErrNotEnoughData = errors.New("not enough data to forecast")

// Point is one observation
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a time-ordered list of observations
type Series []Point

// Values returns the observation values in order
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Last returns the final observation
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Tail returns at most the last n points. n <= 0 returns the whole series.
func (s Series) Tail(n int) Series {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Estimate is a forecast value with its band
type Estimate struct {
	Time  time.Time `json:"time"`
	Yhat  float64   `json:"yhat"`
	Lower float64   `json:"yhat_lower"`
	Upper float64   `json:"yhat_upper"`
}

// Result is the output of a forecaster
type Result struct {
	Model  string     `json:"model"`
	Window int        `json:"window"`
	Points []Estimate `json:"points"`
	// Slope is the fitted change per step
	Slope float64 `json:"slope"`
	// Sigma is the standard deviation of the fit residuals
	Sigma float64 `json:"sigma"`
	// Regressors holds the projected course of each extra input column
	Regressors map[string][]float64 `json:"regressors,omitempty"`
}

// Yhat returns the predicted values in order
func (r *Result) Yhat() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Yhat
	}
	return out
}

// Start and End bound the forecast window
func (r *Result) Start() time.Time {
	if len(r.Points) == 0 {
		return time.Time{}
	}
	return r.Points[0].Time
}

func (r *Result) End() time.Time {
	if len(r.Points) == 0 {
		return time.Time{}
	}
	return r.Points[len(r.Points)-1].Time
}

// Input is what a forecaster fits: the target series plus optional
// regressor columns aligned with it
type Input struct {
	Target     Series
	Regressors map[string]Series
}

// Forecaster predicts horizon steps of size step after the end of the input
type Forecaster interface {
	Forecast(ctx context.Context, in Input, horizon int, step time.Duration) (*Result, error)
}

// Trend is the direction of a forecast
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// ClassifyTrend maps a relative slope to a direction. threshold is the
// fraction of the reference level below which movement counts as flat.
func ClassifyTrend(slope, reference, threshold float64) Trend {
	rel := slope
	if reference != 0 {
		rel = slope / reference
		if reference < 0 {
			rel = -rel
		}
	}
	switch {
	case rel > threshold:
		return TrendUp
	case rel < -threshold:
		return TrendDown
	default:
		return TrendFlat
	}
}
