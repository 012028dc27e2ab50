package main

import (
	"github.com/urfave/cli/v2"
)

var (
	envFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "dotenv file loaded before reading the environment",
		Value: ".env",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "overrides LOG_LEVEL",
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "print results as JSON instead of tables",
	}

	pairFlag = &cli.StringFlag{
		Name:     "pair",
		Usage:    "Kraken pair name, e.g. XXBTZUSD or XBTUSD",
		Required: true,
	}
	intervalFlag = &cli.IntFlag{
		Name:    "interval",
		Aliases: []string{"i"},
		Usage:   "candle interval in minutes (1, 5, 15, 30, 60, 240, 1440, 10080, 21600)",
	}
	sinceFlag = &cli.Int64Flag{
		Name:  "since",
		Usage: "only candles after this unix timestamp",
	}
	horizonFlag = &cli.IntFlag{
		Name:  "horizon",
		Usage: "number of steps to forecast",
	}
	regressorsFlag = &cli.StringSliceFlag{
		Name:  "regressors",
		Usage: "extra candle columns fed to the model (open, high, low, close, vwap, volume, count)",
	}
	graphFlag = &cli.BoolFlag{
		Name:  "graph",
		Usage: "write an SVG chart of the forecast",
	}
	optimizeFlag = &cli.BoolFlag{
		Name:  "optimize",
		Usage: "pick the fit window with the lowest holdout error",
	}
	openOnlyFlag = &cli.BoolFlag{
		Name:  "open",
		Usage: "only show orders that are still open or pending",
	}
	userRefFlag = &cli.Int64Flag{
		Name:  "userref",
		Usage: "restrict to orders with this user reference",
	}

	sideFlag = &cli.StringFlag{
		Name:     "side",
		Usage:    "buy or sell",
		Required: true,
	}
	orderTypeFlag = &cli.StringFlag{
		Name:  "type",
		Usage: "market, limit, stop-loss, take-profit, stop-loss-limit, take-profit-limit, settle-position",
		Value: "limit",
	}
	volumeFlag = &cli.StringFlag{
		Name:     "volume",
		Usage:    "order volume in base currency",
		Required: true,
	}
	priceFlag = &cli.StringFlag{
		Name:  "price",
		Usage: "limit or trigger price",
	}
	validateFlag = &cli.BoolFlag{
		Name:  "validate",
		Usage: "let Kraken check the order without submitting it",
	}
	roundFlag = &cli.BoolFlag{
		Name:  "round",
		Usage: "round price down to the tick size and truncate volume to the lot decimals",
	}
	countFlag = &cli.IntFlag{
		Name:  "count",
		Usage: "stop after this many updates, 0 streams until interrupted",
	}
)
