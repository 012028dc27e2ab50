package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"krakenbot/internal/websocket"
)

var watchCommand = &cli.Command{
	Action:    watch,
	Name:      "watch",
	Usage:     "Stream live ticker updates for a pair",
	ArgsUsage: "BASE QUOTE",
	Flags: []cli.Flag{
		countFlag,
	},
}

func watch(c *cli.Context) error {
	base, quote, err := pairArgs(c)
	if err != nil {
		return err
	}
	if c.Int(countFlag.Name) < 0 {
		return fmt.Errorf("--count must not be negative")
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
	if p.WSName == "" {
		return fmt.Errorf("%s is not available on the websocket feed", p.Name)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	stream := websocket.NewClient(
		websocket.WithURL(rt.cfg.Kraken.WSURL),
		websocket.WithReconnect(rt.cfg.Kraken.MaxRetries, rt.cfg.Kraken.RetryDelay),
		websocket.WithLogger(rt.logger),
	)

	out := newPrinter(c)
	enc := json.NewEncoder(out.w)
	limit := c.Int(countFlag.Name)
	seen := 0

	rt.logger.Info().Str("pair", p.WSName).Str("url", stream.URL()).Msg("Watching ticker")

	return stream.StreamTicker(ctx, []string{p.WSName}, func(u websocket.TickerUpdate) {
		if limit > 0 && seen >= limit {
			return
		}
		seen++

		if out.json {
			_ = enc.Encode(u)
		} else {
			fmt.Fprintf(out.w, "%s  %s  last %s  bid %s  ask %s  %s%%\n",
				u.Received.UTC().Format(time.RFC3339), u.Pair,
				u.Last.String(), u.Bid.String(), u.Ask.String(), u.ChangePercent().StringFixed(2))
		}

		if limit > 0 && seen == limit {
			cancel()
		}
	})
}
