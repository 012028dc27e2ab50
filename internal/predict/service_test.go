package predict

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krakenbot/internal/forecast"
	"krakenbot/internal/kraken"
	"krakenbot/internal/repo"
)

var xbtusd = kraken.AssetPair{Name: "XXBTZUSD", AltName: "XBTUSD", DisplayName: "XBT/USD", Base: "XXBT", Quote: "ZUSD"}

type fakeMarket struct {
	candles  []kraken.Candle
	err      error
	interval int
}

func (f *fakeMarket) Pair(_ context.Context, base, quote string) (kraken.AssetPair, error) {
	if base == "XBT" && quote == "USD" {
		return xbtusd, nil
	}
	return kraken.AssetPair{}, kraken.ErrUnknownPair
}

func (f *fakeMarket) Candles(_ context.Context, _ kraken.AssetPair, interval int, _ int64) (*kraken.OHLC, error) {
	f.interval = interval
	if f.err != nil {
		return nil, f.err
	}
	return &kraken.OHLC{Pair: xbtusd.Name, Candles: f.candles}, nil
}

type fakePlotter struct {
	calls int
	title string
}

func (p *fakePlotter) Plot(_ context.Context, title string, _ forecast.Series, _ *forecast.Result) (string, error) {
	p.calls++
	p.title = title
	return "charts/" + title + ".svg", nil
}

type fakeCounter struct {
	counts map[string]int
}

func (c *fakeCounter) RecordCustomCounter(name string) {
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name]++
}

// stubForecaster returns a fixed result
type stubForecaster struct {
	result *forecast.Result
}

func (f stubForecaster) Forecast(context.Context, forecast.Input, int, time.Duration) (*forecast.Result, error) {
	return f.result, nil
}

// risingCandles opens at 100 and gains step per candle
func risingCandles(n int, step float64) []kraken.Candle {
	start := time.Unix(1616662800, 0).UTC()
	out := make([]kraken.Candle, n)
	for i := range out {
		open := decimal.NewFromFloat(100 + step*float64(i))
		out[i] = kraken.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   open,
			High:   open.Add(decimal.NewFromInt(1)),
			Low:    open.Sub(decimal.NewFromInt(1)),
			Close:  open,
			VWAP:   open,
			Volume: decimal.NewFromInt(int64(10 + i)),
			Count:  int64(i),
		}
	}
	return out
}

func newTestService(t *testing.T, market MarketData, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(market, DefaultOptions(), zerolog.Nop(), opts...)
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresMarket(t *testing.T) {
	_, err := NewService(nil, DefaultOptions(), zerolog.Nop())
	assert.Error(t, err)
}

func TestPredict_RisingSeries(t *testing.T) {
	market := &fakeMarket{candles: risingCandles(50, 2)}
	svc := newTestService(t, market)

	p, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD"})
	require.NoError(t, err)

	assert.Equal(t, 60, market.interval, "default interval is one hour")
	assert.Equal(t, 48, p.Horizon)
	assert.Equal(t, "XXBTZUSD", p.Pair)
	assert.Equal(t, "XBT/USD", p.DisplayName)
	require.Len(t, p.Forecast.Points, 48)
	assert.Len(t, p.History, 50)

	assert.Equal(t, forecast.TrendUp, p.Trend)
	assert.InDelta(t, 2.0, p.Forecast.Slope, 1e-6)
	assert.InDelta(t, 198.0, p.LastValue, 1e-9)
	assert.InDelta(t, 200.0, p.Forecast.Points[0].Yhat, 1e-6)
	assert.True(t, p.TrendSlope.IsPositive())
	assert.Equal(t, p.History[49].Time.Add(time.Hour), p.Forecast.Points[0].Time)
}

func TestPredict_FallingSeriesWithCustomHorizon(t *testing.T) {
	market := &fakeMarket{candles: risingCandles(30, -1)}
	svc := newTestService(t, market)

	p, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Interval: 15, Horizon: 4})
	require.NoError(t, err)

	assert.Equal(t, 15, market.interval)
	assert.Len(t, p.Forecast.Points, 4)
	assert.Equal(t, forecast.TrendDown, p.Trend)
	assert.Equal(t, p.History[29].Time.Add(15*time.Minute), p.Forecast.Points[0].Time)
}

func TestPredict_Regressors(t *testing.T) {
	svc := newTestService(t, &fakeMarket{candles: risingCandles(20, 1)})

	t.Run("valid columns are projected", func(t *testing.T) {
		p, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 2, Regressors: []string{"volume", "close"}})
		require.NoError(t, err)

		assert.Equal(t, []string{"volume", "close"}, p.Regressors)
		assert.Empty(t, p.Ignored)
		require.Contains(t, p.Forecast.Regressors, "volume")
		assert.InDeltaSlice(t, []float64{30, 31}, p.Forecast.Regressors["volume"], 1e-6)
	})

	t.Run("unknown column drops the whole list", func(t *testing.T) {
		p, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 2, Regressors: []string{"volume", "sentiment"}})
		require.NoError(t, err)

		assert.Empty(t, p.Regressors)
		assert.Equal(t, []string{"sentiment"}, p.Ignored)
		assert.Empty(t, p.Forecast.Regressors)
	})
}

func TestCheckRegressors(t *testing.T) {
	valid, unknown := CheckRegressors(nil)
	assert.Nil(t, valid)
	assert.Nil(t, unknown)

	valid, unknown = CheckRegressors([]string{"high", "high", "count"})
	assert.Equal(t, []string{"high", "count"}, valid)
	assert.Empty(t, unknown)

	valid, unknown = CheckRegressors([]string{"high", "spread", "mood"})
	assert.Nil(t, valid)
	assert.Equal(t, []string{"spread", "mood"}, unknown)
}

func TestPredict_Graph(t *testing.T) {
	plotter := &fakePlotter{}
	svc := newTestService(t, &fakeMarket{candles: risingCandles(10, 1)}, WithPlotter(plotter))

	p, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 3})
	require.NoError(t, err)
	assert.Zero(t, plotter.calls)
	assert.Empty(t, p.ChartPath)

	p, err = svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 3, Graph: true})
	require.NoError(t, err)
	assert.Equal(t, 1, plotter.calls)
	assert.Equal(t, "XBT/USD", plotter.title)
	assert.Equal(t, "charts/XBT/USD.svg", p.ChartPath)
}

func TestPredict_Optimize(t *testing.T) {
	// flat history, then a steady climb the recent window captures
	candles := append(risingCandles(200, 0), risingCandles(100, 3)...)
	for i := range candles {
		candles[i].Time = time.Unix(1616662800, 0).UTC().Add(time.Duration(i) * time.Hour)
	}
	for i := 200; i < len(candles); i++ {
		candles[i].Open = decimal.NewFromFloat(100 + 3*float64(i-199))
	}

	svc := newTestService(t, &fakeMarket{candles: candles})

	p, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 12, Optimize: true})
	require.NoError(t, err)

	require.NotEmpty(t, p.Scores)
	assert.Contains(t, []int{24, 48}, p.Forecast.Window, "a trailing window beats the full history")
	assert.InDelta(t, 3.0, p.Forecast.Slope, 1e-6)
}

func TestPredict_Errors(t *testing.T) {
	t.Run("invalid interval", func(t *testing.T) {
		svc := newTestService(t, &fakeMarket{candles: risingCandles(10, 1)})
		_, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Interval: 2})
		assert.ErrorIs(t, err, kraken.ErrInvalidInterval)
	})

	t.Run("unknown pair", func(t *testing.T) {
		svc := newTestService(t, &fakeMarket{})
		_, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "EUR"})
		assert.ErrorIs(t, err, kraken.ErrUnknownPair)
	})

	t.Run("candle fetch failure", func(t *testing.T) {
		boom := errors.New("boom")
		svc := newTestService(t, &fakeMarket{err: boom})
		_, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("too little history", func(t *testing.T) {
		svc := newTestService(t, &fakeMarket{candles: risingCandles(1, 1)})
		_, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD"})
		assert.ErrorIs(t, err, forecast.ErrNotEnoughData)
	})
}

func TestPredict_PersistsRun(t *testing.T) {
	db, err := repo.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.InitTables(db))
	t.Cleanup(func() { _ = repo.Close(db) })

	candleRepo := repo.NewCandleRepo(db)
	forecastRepo := repo.NewForecastRepo(db)
	svc := newTestService(t, &fakeMarket{candles: risingCandles(24, 1)}, WithStore(candleRepo, forecastRepo))

	p, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 6})
	require.NoError(t, err)
	assert.NotZero(t, p.RunID)

	stored, err := candleRepo.Range(context.Background(), "XXBTZUSD", 60, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, stored, 24)

	run, err := forecastRepo.Latest(context.Background(), "XXBTZUSD")
	require.NoError(t, err)
	assert.Equal(t, p.RunID, run.Id)
	assert.Equal(t, "up", run.Trend)
	assert.Equal(t, 6, run.Horizon)
	assert.Contains(t, run.Points, "yhat_lower")
}

func TestPredict_CountsCharts(t *testing.T) {
	counter := &fakeCounter{}
	svc := newTestService(t, &fakeMarket{candles: risingCandles(10, 1)},
		WithPlotter(&fakePlotter{}), WithCounter(counter))

	_, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 3})
	require.NoError(t, err)
	assert.Zero(t, counter.counts[ChartsWrittenCounter])

	for i := 0; i < 2; i++ {
		_, err = svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 3, Graph: true})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, counter.counts[ChartsWrittenCounter])
}

func TestPredict_UnencodableRegressorsSkipPersistence(t *testing.T) {
	db, err := repo.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.InitTables(db))
	t.Cleanup(func() { _ = repo.Close(db) })

	forecastRepo := repo.NewForecastRepo(db)
	start := time.Unix(1616662800, 0).UTC()
	stub := stubForecaster{result: &forecast.Result{
		Model: "stub",
		Points: []forecast.Estimate{
			{Time: start, Yhat: 1, Lower: 0, Upper: 2},
			{Time: start.Add(time.Hour), Yhat: 2, Lower: 1, Upper: 3},
		},
		Regressors: map[string][]float64{"volume": {math.NaN()}},
	}}
	svc := newTestService(t, &fakeMarket{candles: risingCandles(10, 1)},
		WithForecaster(stub), WithStore(repo.NewCandleRepo(db), forecastRepo))

	p, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 2})
	require.NoError(t, err, "persistence never fails a prediction")
	assert.Zero(t, p.RunID)

	runs, err := forecastRepo.List(context.Background(), "XXBTZUSD", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPredict_FallsBackToStoredCandles(t *testing.T) {
	db, err := repo.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.InitTables(db))
	t.Cleanup(func() { _ = repo.Close(db) })

	market := &fakeMarket{candles: risingCandles(24, 1)}
	svc := newTestService(t, market, WithStore(repo.NewCandleRepo(db), repo.NewForecastRepo(db)))

	fresh, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 4})
	require.NoError(t, err)
	assert.False(t, fresh.Stale)

	boom := errors.New("kraken unavailable")
	market.err = boom
	cached, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Horizon: 4})
	require.NoError(t, err)
	assert.True(t, cached.Stale)
	assert.Len(t, cached.History, 24)
	assert.Equal(t, fresh.LastValue, cached.LastValue)
	assert.Equal(t, fresh.Trend, cached.Trend)

	t.Run("nothing stored for the interval", func(t *testing.T) {
		_, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD", Interval: 15})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("canceled requests do not fall back", func(t *testing.T) {
		market.err = context.Canceled
		_, err := svc.Predict(context.Background(), Request{Base: "XBT", Quote: "USD"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
