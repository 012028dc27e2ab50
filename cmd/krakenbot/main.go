package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"krakenbot/internal/rest"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "krakenbot",
		Usage:   "Kraken account, market data and price forecasts",
		Version: version,
		Flags: []cli.Flag{
			envFileFlag,
			logLevelFlag,
			jsonFlag,
		},
		Commands: []*cli.Command{
			statusCommand,
			balanceCommand,
			ordersCommand,
			cancelCommand,
			addOrderCommand,
			assetsCommand,
			pairCommand,
			ohlcCommand,
			forecastCommand,
			watchCommand,
			serveCommand,
		},
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage marks failures that may pass when the command is run again
func errorMessage(err error) string {
	if rest.IsRetryableError(err) {
		return err.Error() + " (temporary, try again)"
	}
	return err.Error()
}
