package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/urfave/cli/v2"

	"krakenbot/internal/api"
	"krakenbot/internal/handlers"
	"krakenbot/internal/repo"
)

var serveCommand = &cli.Command{
	Action: serve,
	Name:   "serve",
	Usage:  "Serve the read-only HTTP API",
}

// buildServer wires the runtime into the API server
func buildServer(rt *runtime) (*api.Server, error) {
	svc, runs, err := rt.predictor()
	if err != nil {
		return nil, err
	}

	checks := handlers.Checks{
		"kraken": handlers.KrakenStatusCheck(rt.client),
	}
	deps := api.Dependencies{
		Market:    rt.client,
		Predictor: svc,
		Catalog:   rt.client,
		Readiness: checks,
		Metrics:   rt.collector,
	}
	if rt.client.HasCredentials() {
		deps.Account = rt.client
	}
	if runs != nil {
		deps.Runs = runs
		db := rt.db
		checks["database"] = handlers.PingCheck(func(ctx context.Context) error {
			return repo.Ping(ctx, db)
		})
	}

	return api.NewServer(api.ConfigFromSettings(rt.cfg, version), deps, rt.logger)
}

func serve(c *cli.Context) error {
	rt, err := loadRuntime(c, loadOptions{server: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	server, err := buildServer(rt)
	if err != nil {
		return err
	}

	rt.logger.Info().
		Str("addr", server.Addr()).
		Str("version", version).
		Bool("credentials", rt.client.HasCredentials()).
		Msg("Starting krakenbot API")

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-c.Context.Done():
		rt.logger.Info().Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		rt.logger.Error().Err(err).Msg("Failed to shutdown server gracefully")
		return err
	}

	rt.logger.Info().Msg("Shutdown complete")
	return nil
}
