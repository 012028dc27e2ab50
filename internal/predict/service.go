// Package predict turns a pair of asset names into a price forecast.
package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"krakenbot/internal/chart"
	"krakenbot/internal/entity"
	"krakenbot/internal/forecast"
	"krakenbot/internal/kraken"
	"krakenbot/internal/repo"
)

// TargetColumn is the candle column being predicted
const TargetColumn = "open"

// storedLimit matches the most candles one OHLC call returns
const storedLimit = 720

// MarketData is what the service needs from Kraken
type MarketData interface {
	Pair(ctx context.Context, base, quote string) (kraken.AssetPair, error)
	Candles(ctx context.Context, pair kraken.AssetPair, interval int, since int64) (*kraken.OHLC, error)
}

// Request describes one prediction
type Request struct {
	Base     string
	Quote    string
	Interval int // minutes; 0 uses the default
	Horizon  int // steps; 0 uses the default
	// Regressors are extra candle columns fed to the model
	Regressors []string
	Graph      bool
	// Optimize picks the fit window with the lowest holdout error
	Optimize bool
}

// Prediction is the outcome of a request
type Prediction struct {
	RunID       int64            `json:"run_id,omitempty"`
	Pair        string           `json:"pair"`
	DisplayName string           `json:"display_name"`
	Interval    int              `json:"interval"`
	Horizon     int              `json:"horizon"`
	History     forecast.Series  `json:"-"`
	Forecast    *forecast.Result `json:"forecast"`
	Trend       forecast.Trend   `json:"trend"`
	TrendSlope  decimal.Decimal  `json:"trend_slope"`
	LastValue   float64          `json:"last_value"`
	Regressors  []string         `json:"regressors,omitempty"`
	Ignored     []string         `json:"ignored_regressors,omitempty"`
	ChartPath   string           `json:"chart_path,omitempty"`
	Scores      []forecast.Score `json:"scores,omitempty"`
	// Stale is set when Kraken was unreachable and stored candles were used
	Stale bool `json:"stale,omitempty"`
}

// Options are service defaults
type Options struct {
	Interval      int
	Horizon       int
	Window        int
	Confidence    float64
	FlatThreshold float64
}

// DefaultOptions predicts 48 hourly steps
func DefaultOptions() Options {
	return Options{
		Interval:      kraken.DefaultInterval,
		Horizon:       48,
		Confidence:    forecast.DefaultConfidence,
		FlatThreshold: 0.0005,
	}
}

// Service runs predictions
type Service struct {
	market     MarketData
	forecaster forecast.Forecaster
	plotter    chart.Plotter
	candles    repo.CandleRepo
	runs       repo.ForecastRepo
	counter    Counter
	opts       Options
	logger     zerolog.Logger
}

// Option configures the service
type Option func(*Service)

// WithPlotter enables charts
func WithPlotter(p chart.Plotter) Option {
	return func(s *Service) { s.plotter = p }
}

// WithStore persists candles and forecast runs
func WithStore(candles repo.CandleRepo, runs repo.ForecastRepo) Option {
	return func(s *Service) {
		s.candles = candles
		s.runs = runs
	}
}

// Counter counts named events; metrics.Collector satisfies it
type Counter interface {
	RecordCustomCounter(name string)
}

// ChartsWrittenCounter counts charts the plotter wrote
const ChartsWrittenCounter = "charts_written_total"

// WithCounter counts written charts
func WithCounter(c Counter) Option {
	return func(s *Service) { s.counter = c }
}

// WithForecaster replaces the default linear model
func WithForecaster(f forecast.Forecaster) Option {
	return func(s *Service) { s.forecaster = f }
}

// NewService creates a prediction service
func NewService(market MarketData, opts Options, logger zerolog.Logger, options ...Option) (*Service, error) {
	if market == nil {
		return nil, fmt.Errorf("market data source is required")
	}
	if opts.Interval == 0 {
		opts.Interval = kraken.DefaultInterval
	}
	if opts.Horizon == 0 {
		opts.Horizon = 48
	}

	s := &Service{
		market:     market,
		forecaster: forecast.NewLinearModel(opts.Window, opts.Confidence),
		opts:       opts,
		logger:     logger,
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// Predict fetches candles for the pair and forecasts the open price
func (s *Service) Predict(ctx context.Context, req Request) (*Prediction, error) {
	interval := lo.Ternary(req.Interval == 0, s.opts.Interval, req.Interval)
	horizon := lo.Ternary(req.Horizon == 0, s.opts.Horizon, req.Horizon)
	if !kraken.IsValidInterval(interval) {
		return nil, fmt.Errorf("%w: %d", kraken.ErrInvalidInterval, interval)
	}
	if horizon < 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	pair, err := s.market.Pair(ctx, req.Base, req.Quote)
	if err != nil {
		return nil, err
	}

	stale := false
	var candles []kraken.Candle
	ohlc, err := s.market.Candles(ctx, pair, interval, 0)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		stored, latest, storeErr := s.storedCandles(ctx, pair.Name, interval)
		if storeErr != nil {
			return nil, err
		}
		s.logger.Warn().
			Err(err).
			Str("pair", pair.Name).
			Time("latest", latest).
			Int("candles", len(stored)).
			Msg("Candle fetch failed, forecasting from stored candles")
		candles, stale = stored, true
	} else {
		candles = ohlc.Candles
		s.storeCandles(ctx, pair.Name, interval, candles)
	}

	history := column(candles, TargetColumn)
	input := forecast.Input{Target: history}

	regressors, ignored := CheckRegressors(req.Regressors)
	if len(ignored) > 0 {
		s.logger.Warn().
			Strs("requested", req.Regressors).
			Strs("unknown", ignored).
			Msg("Optional input data does not exist in the candle data, ignoring regressors")
	}
	if len(regressors) > 0 {
		input.Regressors = make(map[string]forecast.Series, len(regressors))
		for _, name := range regressors {
			input.Regressors[name] = column(candles, name)
		}
	}

	step := time.Duration(interval) * time.Minute
	forecaster := s.forecaster
	var scores []forecast.Score
	if req.Optimize {
		holdout := lo.Clamp(horizon, 1, max(len(history)/4, 1))
		window, sc, err := forecast.SelectWindow(ctx, history, holdout, nil, s.opts.Confidence)
		if err != nil {
			return nil, fmt.Errorf("window selection failed: %w", err)
		}
		s.logger.Info().Int("window", window).Int("holdout", holdout).Msg("Selected fit window")
		forecaster = forecast.NewLinearModel(window, s.opts.Confidence)
		scores = sc
	}

	result, err := forecaster.Forecast(ctx, input, horizon, step)
	if err != nil {
		return nil, err
	}

	last, _ := history.Last()
	prediction := &Prediction{
		Pair:        pair.Name,
		DisplayName: pair.DisplayName,
		Interval:    interval,
		Horizon:     horizon,
		History:     history,
		Forecast:    result,
		Trend:       forecast.ClassifyTrend(result.Slope, last.Value, s.opts.FlatThreshold),
		TrendSlope:  forecast.SlopeOf(result.Yhat()),
		LastValue:   last.Value,
		Regressors:  regressors,
		Ignored:     ignored,
		Scores:      scores,
		Stale:       stale,
	}

	if req.Graph {
		if s.plotter == nil {
			s.logger.Warn().Msg("Graph requested but no plotter configured")
		} else {
			path, err := s.plotter.Plot(ctx, pair.DisplayName, history, result)
			if err != nil {
				return nil, fmt.Errorf("failed to plot forecast: %w", err)
			}
			prediction.ChartPath = path
			if s.counter != nil {
				s.counter.RecordCustomCounter(ChartsWrittenCounter)
			}
			s.logger.Info().Str("path", path).Msg("Forecast chart written")
		}
	}

	s.storeRun(ctx, prediction)

	s.logger.Info().
		Str("pair", pair.Name).
		Int("interval", interval).
		Int("horizon", horizon).
		Int("candles", len(history)).
		Str("trend", string(prediction.Trend)).
		Float64("slope", result.Slope).
		Msg("Forecast computed")

	return prediction, nil
}

// CheckRegressors splits requested columns into usable ones and unknown
// ones. Any unknown name drops the whole list.
func CheckRegressors(names []string) (valid, unknown []string) {
	if len(names) == 0 {
		return nil, nil
	}
	unknown = lo.Filter(names, func(name string, _ int) bool {
		return !lo.Contains(kraken.CandleColumns, name)
	})
	if len(unknown) > 0 {
		return nil, unknown
	}
	return lo.Uniq(names), nil
}

func column(candles []kraken.Candle, name string) forecast.Series {
	s := make(forecast.Series, 0, len(candles))
	for _, c := range candles {
		v, ok := c.Column(name)
		if !ok {
			continue
		}
		s = append(s, forecast.Point{Time: c.Time, Value: v})
	}
	return s
}

// persistence never fails a prediction
func (s *Service) storeCandles(ctx context.Context, pair string, interval int, candles []kraken.Candle) {
	if s.candles == nil {
		return
	}
	rows := lo.Map(candles, func(c kraken.Candle, _ int) entity.Candle {
		return entity.Candle{
			Pair:     pair,
			Interval: interval,
			OpenTime: c.Time,
			Open:     c.Open,
			High:     c.High,
			Low:      c.Low,
			Close:    c.Close,
			VWAP:     c.VWAP,
			Volume:   c.Volume,
			Count:    c.Count,
		}
	})
	if err := s.candles.Upsert(ctx, rows); err != nil {
		s.logger.Error().Err(err).Str("pair", pair).Msg("Failed to store candles")
	}
}

// storedCandles loads up to storedLimit candles ending at the newest stored one
func (s *Service) storedCandles(ctx context.Context, pair string, interval int) ([]kraken.Candle, time.Time, error) {
	if s.candles == nil {
		return nil, time.Time{}, repo.ErrNotFound
	}
	latest, err := s.candles.Latest(ctx, pair, interval)
	if err != nil {
		return nil, time.Time{}, err
	}

	from := latest.OpenTime.Add(-time.Duration(storedLimit-1) * time.Duration(interval) * time.Minute)
	rows, err := s.candles.Range(ctx, pair, interval, from, latest.OpenTime)
	if err != nil {
		return nil, time.Time{}, err
	}

	candles := lo.Map(rows, func(c entity.Candle, _ int) kraken.Candle {
		return kraken.Candle{
			Time:   c.OpenTime,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			VWAP:   c.VWAP,
			Volume: c.Volume,
			Count:  c.Count,
		}
	})
	return candles, latest.OpenTime, nil
}

func (s *Service) storeRun(ctx context.Context, p *Prediction) {
	if s.runs == nil {
		return
	}

	points, err := json.Marshal(p.Forecast.Points)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode forecast points")
		return
	}
	var regressors []byte
	if len(p.Forecast.Regressors) > 0 {
		regressors, err = json.Marshal(p.Forecast.Regressors)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to encode forecast regressors")
			return
		}
	}

	run := &entity.ForecastRun{
		Pair:       p.Pair,
		Interval:   p.Interval,
		Horizon:    p.Horizon,
		Model:      p.Forecast.Model,
		Trend:      string(p.Trend),
		Slope:      p.Forecast.Slope,
		TrendSlope: p.TrendSlope.String(),
		LastValue:  p.LastValue,
		Points:     string(points),
		Regressors: string(regressors),
		ChartPath:  p.ChartPath,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("pair", p.Pair).Msg("Failed to store forecast run")
		return
	}
	p.RunID = run.Id
}
