package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"krakenbot/internal/forecast"
	"krakenbot/internal/kraken"
	"krakenbot/internal/predict"
)

var (
	statusCommand = &cli.Command{
		Action: status,
		Name:   "status",
		Usage:  "Show Kraken system status and server time",
	}
	assetsCommand = &cli.Command{
		Action:    assets,
		Name:      "assets",
		Usage:     "List assets, or look up the named ones",
		ArgsUsage: "[NAME...]",
	}
	pairCommand = &cli.Command{
		Action:    pair,
		Name:      "pair",
		Usage:     "Resolve a pair from two asset names and show its ticker",
		ArgsUsage: "BASE QUOTE",
	}
	ohlcCommand = &cli.Command{
		Action:    ohlc,
		Name:      "ohlc",
		Usage:     "Show candles for a pair",
		ArgsUsage: "BASE QUOTE",
		Flags: []cli.Flag{
			intervalFlag,
			sinceFlag,
		},
	}
	forecastCommand = &cli.Command{
		Action:    forecastPair,
		Name:      "forecast",
		Usage:     "Forecast the open price of a pair",
		ArgsUsage: "BASE QUOTE",
		Flags: []cli.Flag{
			intervalFlag,
			horizonFlag,
			regressorsFlag,
			graphFlag,
			optimizeFlag,
		},
	}
)

func status(c *cli.Context) error {
	rt, err := loadRuntime(c, loadOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	st, err := rt.client.Status(c.Context)
	if err != nil {
		return err
	}
	serverTime, err := rt.client.Public().ServerTime(c.Context)
	if err != nil {
		return err
	}

	out := map[string]any{
		"status":      st.Status,
		"timestamp":   st.Timestamp,
		"server_time": serverTime.Time().Format(time.RFC3339),
		"credentials": rt.client.HasCredentials(),
	}
	return newPrinter(c).Table(out,
		[]string{"STATUS", "SINCE", "SERVER TIME", "CREDENTIALS"},
		[][]string{{st.Status, st.Timestamp, serverTime.Time().Format(time.RFC3339), strconv.FormatBool(rt.client.HasCredentials())}},
	)
}

func assets(c *cli.Context) error {
	rt, err := loadRuntime(c, loadOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	var list []kraken.Asset
	if c.NArg() == 0 {
		catalog, err := rt.client.Catalog(c.Context)
		if err != nil {
			return err
		}
		list = catalog.Assets()
	} else {
		for _, name := range c.Args().Slice() {
			asset, err := rt.client.Asset(c.Context, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			list = append(list, asset)
		}
	}

	rows := lo.Map(list, func(a kraken.Asset, _ int) []string {
		return []string{a.Name, a.AltName, a.AClass, strconv.Itoa(a.Decimals), strconv.Itoa(a.DisplayDecimals), a.Status}
	})
	return newPrinter(c).Table(list, []string{"NAME", "ALTNAME", "CLASS", "DECIMALS", "DISPLAY", "STATUS"}, rows)
}

// pairArgs reads the BASE QUOTE positional arguments
func pairArgs(c *cli.Context) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", fmt.Errorf("expected BASE QUOTE, got %d arguments", c.NArg())
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

func pair(c *cli.Context) error {
	base, quote, err := pairArgs(c)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(c, loadOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := rt.client.Pair(c.Context, base, quote)
	if err != nil {
		return err
	}
	ticker, err := rt.client.Ticker(c.Context, p)
	if err != nil {
		return err
	}

	out := map[string]any{
		"pair":         p.Name,
		"altname":      p.AltName,
		"display_name": p.DisplayName,
		"ordermin":     p.OrderMin,
		"last":         ticker.LastPrice(),
		"mid":          ticker.Mid(),
	}
	return newPrinter(c).Table(out,
		[]string{"PAIR", "ALTNAME", "DISPLAY", "ORDERMIN", "LAST", "MID"},
		[][]string{{p.Name, p.AltName, p.DisplayName, p.OrderMin.String(), ticker.LastPrice().String(), ticker.Mid().String()}},
	)
}

func ohlc(c *cli.Context) error {
	base, quote, err := pairArgs(c)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(c, loadOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	interval := lo.Ternary(c.Int(intervalFlag.Name) == 0, rt.cfg.Forecast.Interval, c.Int(intervalFlag.Name))

	p, err := rt.client.Pair(c.Context, base, quote)
	if err != nil {
		return err
	}
	data, err := rt.client.Candles(c.Context, p, interval, c.Int64(sinceFlag.Name))
	if err != nil {
		return err
	}

	rows := lo.Map(data.Candles, func(k kraken.Candle, _ int) []string {
		return []string{
			k.Time.UTC().Format(time.RFC3339),
			k.Open.String(),
			k.High.String(),
			k.Low.String(),
			k.Close.String(),
			k.VWAP.String(),
			k.Volume.String(),
			strconv.FormatInt(k.Count, 10),
		}
	})
	return newPrinter(c).Table(data,
		[]string{"TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VWAP", "VOLUME", "COUNT"}, rows)
}

func forecastPair(c *cli.Context) error {
	base, quote, err := pairArgs(c)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(c, loadOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	svc, _, err := rt.predictor()
	if err != nil {
		return err
	}

	prediction, err := svc.Predict(c.Context, predict.Request{
		Base:       base,
		Quote:      quote,
		Interval:   c.Int(intervalFlag.Name),
		Horizon:    c.Int(horizonFlag.Name),
		Regressors: c.StringSlice(regressorsFlag.Name),
		Graph:      c.Bool(graphFlag.Name),
		Optimize:   c.Bool(optimizeFlag.Name),
	})
	if err != nil {
		return err
	}

	p := newPrinter(c)
	if p.json {
		return p.JSON(prediction)
	}

	fmt.Fprintf(p.w, "%s (%s) every %dm, %d steps, model %s\n",
		prediction.DisplayName, prediction.Pair, prediction.Interval, prediction.Horizon, prediction.Forecast.Model)
	fmt.Fprintf(p.w, "last %s, trend %s (slope %s)\n",
		strconv.FormatFloat(prediction.LastValue, 'f', -1, 64), prediction.Trend, prediction.TrendSlope.StringFixed(6))
	if len(prediction.Ignored) > 0 {
		fmt.Fprintf(p.w, "ignored regressors: %v\n", prediction.Ignored)
	}
	if prediction.ChartPath != "" {
		fmt.Fprintf(p.w, "chart: %s\n", prediction.ChartPath)
	}

	rows := lo.Map(prediction.Forecast.Points, func(e forecast.Estimate, _ int) []string {
		return []string{
			e.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(e.Yhat, 'f', 4, 64),
			strconv.FormatFloat(e.Lower, 'f', 4, 64),
			strconv.FormatFloat(e.Upper, 'f', 4, 64),
		}
	})
	return p.Table(prediction, []string{"TIME", "YHAT", "LOWER", "UPPER"}, rows)
}
