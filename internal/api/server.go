// Package api serves the read-only HTTP interface of the assistant.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"krakenbot/internal/config"
	"krakenbot/internal/handlers"
	"krakenbot/internal/metrics"
)

// ServerConfig contains server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int
	APIKey         string
	APIKeyHeader   string
	Version        string
	RateLimit      int // requests per window and client
	RateWindow     time.Duration
	CORSOrigins    []string
}

// ConfigFromSettings builds the server config from loaded settings
func ConfigFromSettings(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		APIKey:       cfg.Security.RequiredAPIKey,
		APIKeyHeader: cfg.Security.APIKeyHeader,
		Version:      version,
		RateLimit:    cfg.Security.RateLimit,
		RateWindow:   time.Second,
		CORSOrigins:  cfg.Security.CORSOrigins,
	}
}

// Dependencies are the services behind the routes. Nil members disable
// their routes, except Market and Predictor which are required.
type Dependencies struct {
	Market    handlers.MarketService
	Predictor handlers.Predictor
	Account   handlers.AccountService
	Catalog   handlers.CatalogRefresher
	Runs      handlers.RunLister
	Readiness handlers.ReadinessChecker
	Metrics   *metrics.Collector
}

// Server represents the API server
type Server struct {
	config     ServerConfig
	deps       Dependencies
	router     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Dependencies, logger zerolog.Logger) (*Server, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	if deps.Market == nil || deps.Predictor == nil {
		return nil, fmt.Errorf("market and predictor are required")
	}

	setConfigDefaults(&config)

	if logger.GetLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:    config,
		deps:      deps,
		router:    router,
		logger:    logger,
		startTime: time.Now(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:           net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Handler:        router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return server, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the API server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.httpServer.Addr).
		Str("version", s.config.Version).
		Msg("Starting API server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	// request id first so every later middleware can log it
	s.router.Use(RequestIDMiddleware())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(ErrorMiddleware(s.logger))

	if s.deps.Metrics != nil {
		s.router.Use(metrics.Middleware(s.deps.Metrics))
	}

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(CORSMiddleware(CORSConfig{
			AllowOrigins:  s.config.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", s.config.APIKeyHeader, RequestIDHeader},
			ExposeHeaders: []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:        86400,
		}))
	}

	if s.config.RateLimit > 0 {
		s.router.Use(RateLimitMiddleware(s.config.RateLimit, s.config.RateWindow))
	}

	s.router.Use(TimeoutMiddleware(s.config.RequestTimeout))
}

func (s *Server) setupRoutes() {
	health := handlers.NewHealthHandlers(s.config.Version, s.startTime)
	s.router.GET("/health", health.HealthCheck())
	if s.deps.Readiness != nil {
		s.router.GET("/ready", health.Readiness(s.deps.Readiness))
	}
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", health.Metrics(s.deps.Metrics))
	}

	api := s.router.Group("/api")
	api.Use(AuthMiddleware(s.config.APIKeyHeader, s.config.APIKey))

	var recorder handlers.ForecastRecorder
	if s.deps.Metrics != nil {
		recorder = s.deps.Metrics
	}
	market := handlers.NewMarketHandlers(s.deps.Market, s.deps.Predictor, recorder, s.logger)
	api.GET("/assets/:name", market.Asset())
	api.GET("/pair/:base/:quote", market.Pair())
	api.GET("/forecast/:base/:quote", market.Forecast())

	if s.deps.Account != nil {
		account := handlers.NewAccountHandlers(s.deps.Account)
		api.GET("/account", account.Account())
		api.GET("/balance", account.Balance())
		api.GET("/orders/open", account.OpenOrders())
		api.GET("/orders/closed", account.ClosedOrders())
	}

	var stats handlers.StatsResetter
	if s.deps.Metrics != nil {
		stats = s.deps.Metrics
	}
	admin := handlers.NewAdminHandlers(s.deps.Catalog, s.deps.Runs, stats)
	adminGroup := api.Group("/admin")
	{
		adminGroup.POST("/catalog/refresh", admin.RefreshCatalog())
		adminGroup.GET("/forecasts", admin.ListForecasts())
		adminGroup.GET("/forecasts/:pair/latest", admin.LatestForecast())
		adminGroup.POST("/stats/reset", admin.ResetStats())
	}
}

func validateConfig(config *ServerConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	if config.APIKey == "" {
		return fmt.Errorf("API key required")
	}

	if config.Version == "" {
		config.Version = "unknown"
	}

	return nil
}

func setConfigDefaults(config *ServerConfig) {
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}

	if config.WriteTimeout == 0 {
		config.WriteTimeout = 60 * time.Second
	}

	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}

	if config.RequestTimeout == 0 {
		config.RequestTimeout = 45 * time.Second
	}

	if config.MaxHeaderBytes == 0 {
		config.MaxHeaderBytes = 1 << 20 // 1 MB
	}

	if config.RateWindow == 0 {
		config.RateWindow = time.Second
	}

	if config.APIKeyHeader == "" {
		config.APIKeyHeader = "X-API-Key"
	}
}
