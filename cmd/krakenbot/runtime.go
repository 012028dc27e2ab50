package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"krakenbot/internal/auth"
	"krakenbot/internal/chart"
	"krakenbot/internal/config"
	"krakenbot/internal/kraken"
	"krakenbot/internal/logging"
	"krakenbot/internal/metrics"
	"krakenbot/internal/predict"
	"krakenbot/internal/repo"
	"krakenbot/internal/rest"
)

// runtime holds what a command needs, built from config
type runtime struct {
	cfg       *config.Config
	logger    zerolog.Logger
	collector *metrics.Collector
	client    *kraken.Client
	db        *gorm.DB
	closers   []io.Closer
}

type loadOptions struct {
	// private commands fail early without credentials
	private bool
	// server logs JSON unless LOG_FORMAT says otherwise
	server bool
}

func loadRuntime(c *cli.Context, opts loadOptions) (*runtime, error) {
	if err := config.LoadDotEnv(c.String(envFileFlag.Name)); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.private {
		if err := cfg.RequirePrivate(); err != nil {
			return nil, err
		}
	}
	if level := c.String(logLevelFlag.Name); level != "" {
		cfg.Logging.Level = level
	}
	if opts.server && os.Getenv("LOG_FORMAT") == "" {
		cfg.Logging.Format = "json"
	}

	logger, closer := logging.New(cfg.Logging)
	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		collector: metrics.NewCollector(),
		closers:   []io.Closer{closer},
	}
	logger.Debug().Str("config", cfg.String()).Msg("Configuration loaded")

	public := kraken.NewPublicClient(cfg.Kraken.BaseURL, cfg.Kraken.Timeout,
		kraken.WithRetry(cfg.Kraken.MaxRetries, cfg.Kraken.RetryDelay, 10*cfg.Kraken.RetryDelay),
		kraken.WithPublicObserver(rt.collector),
	)

	var private *rest.Client
	if cfg.HasCredentials() {
		private = rest.NewClient(cfg.Kraken.BaseURL,
			auth.NewSigner(cfg.Kraken.APIKey, cfg.Kraken.APISecret),
			rest.WithTimeout(cfg.Kraken.Timeout),
			rest.WithRateLimit(cfg.Kraken.RateLimit, cfg.Kraken.RateBurst),
			rest.WithObserver(rt.collector),
		)
		logger.Debug().
			Str("base_url", private.BaseURL()).
			Dur("timeout", private.Timeout()).
			Bool("rate_limited", private.RateLimited()).
			Msg("Private client configured")
	}

	rt.client, err = kraken.NewClient(public, private, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.client.SetCatalogTTL(cfg.Kraken.CatalogTTL)

	return rt, nil
}

// openStore opens the database on first use
func (rt *runtime) openStore() (*gorm.DB, error) {
	if rt.db != nil {
		return rt.db, nil
	}

	db, err := repo.Open(rt.cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	if err := repo.InitTables(db); err != nil {
		_ = repo.Close(db)
		return nil, errors.Wrap(err, "migrate database")
	}
	rt.db = db
	return db, nil
}

// predictor builds the forecast service. Storage is optional: without a
// database forecasts still run but nothing is kept.
func (rt *runtime) predictor() (*predict.Service, repo.ForecastRepo, error) {
	options := []predict.Option{
		predict.WithPlotter(chart.NewSVGPlotter(rt.cfg.Forecast.ChartDir)),
		predict.WithCounter(rt.collector),
	}

	var runs repo.ForecastRepo
	db, err := rt.openStore()
	if err != nil {
		rt.logger.Warn().Err(err).Msg("Storage unavailable, forecasts will not be persisted")
	} else {
		runs = repo.NewForecastRepo(db)
		options = append(options, predict.WithStore(repo.NewCandleRepo(db), runs))
	}

	svc, err := predict.NewService(rt.client, predict.Options{
		Interval:      rt.cfg.Forecast.Interval,
		Horizon:       rt.cfg.Forecast.Horizon,
		Window:        rt.cfg.Forecast.Window,
		Confidence:    rt.cfg.Forecast.Confidence,
		FlatThreshold: rt.cfg.Forecast.FlatThreshold,
	}, rt.logger, options...)
	if err != nil {
		return nil, nil, err
	}
	return svc, runs, nil
}

func (rt *runtime) Close() {
	if rt.db != nil {
		if err := repo.Close(rt.db); err != nil {
			rt.logger.Error().Err(err).Msg("Failed to close database")
		}
		rt.db = nil
	}
	for _, closer := range rt.closers {
		_ = closer.Close()
	}
	rt.closers = nil
}
