package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"krakenbot/internal/kraken"
)

// Config holds all configuration for krakenbot
type Config struct {
	Kraken   KrakenConfig   `json:"kraken"`
	Forecast ForecastConfig `json:"forecast"`
	Storage  StorageConfig  `json:"storage"`
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Security SecurityConfig `json:"security"`
}

// KrakenConfig holds Kraken API configuration
type KrakenConfig struct {
	APIKey    string `json:"-"`
	APISecret string `json:"-"`

	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`

	// Client-side throttling of private calls; 0 disables it
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	CatalogTTL time.Duration `json:"catalog_ttl"`

	// Public WebSocket endpoint for live tickers
	WSURL string `json:"ws_url"`
}

// ForecastConfig holds prediction defaults
type ForecastConfig struct {
	Interval      int     `json:"interval"` // minutes
	Horizon       int     `json:"horizon"`  // steps
	Window        int     `json:"window"`   // candles used to fit, 0 = all
	Confidence    float64 `json:"confidence"`
	FlatThreshold float64 `json:"flat_threshold"`
	ChartDir      string  `json:"chart_dir"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath string `json:"db_path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `json:"port"`
	Host            string        `json:"host"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"` // json or console
	Output     string `json:"output"` // stdout, stderr, or file path
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
}

// SecurityConfig holds HTTP API access configuration
type SecurityConfig struct {
	APIKeyHeader   string   `json:"api_key_header"`
	RequiredAPIKey string   `json:"-"`
	RateLimit      int      `json:"rate_limit"` // requests per second and client, 0 disables
	CORSOrigins    []string `json:"cors_origins"`
}

// LoadDotEnv loads .env files into the environment. Missing files are
// skipped; a file that exists but does not parse is an error. Variables
// already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Kraken: KrakenConfig{
			APIKey:     getEnv("KRAKEN_API_KEY", ""),
			APISecret:  getEnv("KRAKEN_API_PRIVATE_KEY", ""),
			BaseURL:    getEnv("KRAKEN_BASE_URL", "https://api.kraken.com"),
			Timeout:    getEnvAsDuration("KRAKEN_TIMEOUT", "10s"),
			MaxRetries: getEnvAsInt("KRAKEN_MAX_RETRIES", 3),
			RetryDelay: getEnvAsDuration("KRAKEN_RETRY_DELAY", "500ms"),
			RateLimit:  getEnvAsFloat("KRAKEN_RATE_LIMIT", 0),
			RateBurst:  getEnvAsInt("KRAKEN_RATE_BURST", 15),
			CatalogTTL: getEnvAsDuration("KRAKEN_CATALOG_TTL", "1h"),
			WSURL:      getEnv("KRAKEN_WS_URL", "wss://ws.kraken.com"),
		},
		Forecast: ForecastConfig{
			Interval:      getEnvAsInt("FORECAST_INTERVAL", 60),
			Horizon:       getEnvAsInt("FORECAST_HORIZON", 48),
			Window:        getEnvAsInt("FORECAST_WINDOW", 0),
			Confidence:    getEnvAsFloat("FORECAST_CONFIDENCE", 1.96),
			FlatThreshold: getEnvAsFloat("FORECAST_FLAT_THRESHOLD", 0.0005),
			ChartDir:      getEnv("FORECAST_CHART_DIR", "charts"),
		},
		Storage: StorageConfig{
			DBPath: getEnv("KRAKEN_DB_PATH", "krakenbot.db"),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "127.0.0.1"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", "30s"),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", "60s"),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", "10s"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "console"),
			Output:     getEnv("LOG_OUTPUT", "stderr"),
			MaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvAsInt("LOG_MAX_AGE", 30),
		},
		Security: SecurityConfig{
			APIKeyHeader:   getEnv("SECURITY_API_KEY_HEADER", "X-API-Key"),
			RequiredAPIKey: getEnv("SECURITY_REQUIRED_API_KEY", ""),
			RateLimit:      getEnvAsInt("SECURITY_RATE_LIMIT", 0),
			CORSOrigins:    getEnvAsList("SECURITY_CORS_ORIGINS"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks everything that does not depend on the command being run.
// Credentials are checked separately by RequirePrivate.
func (c *Config) Validate() error {
	if c.Kraken.BaseURL == "" {
		return fmt.Errorf("KRAKEN_BASE_URL must not be empty")
	}
	if c.Kraken.Timeout <= 0 {
		return fmt.Errorf("invalid KRAKEN_TIMEOUT: %s", c.Kraken.Timeout)
	}
	if c.Kraken.RateLimit < 0 {
		return fmt.Errorf("invalid KRAKEN_RATE_LIMIT: %v", c.Kraken.RateLimit)
	}
	if c.Kraken.RateLimit > 0 && c.Kraken.RateBurst <= 0 {
		return fmt.Errorf("invalid KRAKEN_RATE_BURST: %d", c.Kraken.RateBurst)
	}
	if !kraken.IsValidInterval(c.Forecast.Interval) {
		return fmt.Errorf("invalid FORECAST_INTERVAL: %d (valid: %v)", c.Forecast.Interval, kraken.ValidIntervals)
	}
	// a line needs two points
	if c.Forecast.Window < 0 || c.Forecast.Window == 1 {
		return fmt.Errorf("invalid FORECAST_WINDOW: %d (0 fits all candles, otherwise at least 2)", c.Forecast.Window)
	}
	if c.Forecast.Horizon <= 0 {
		return fmt.Errorf("invalid FORECAST_HORIZON: %d", c.Forecast.Horizon)
	}
	if c.Forecast.Confidence <= 0 {
		return fmt.Errorf("invalid FORECAST_CONFIDENCE: %v", c.Forecast.Confidence)
	}
	if c.Security.RateLimit < 0 {
		return fmt.Errorf("invalid SECURITY_RATE_LIMIT: %d", c.Security.RateLimit)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

// RequirePrivate checks that credentials for private endpoints are present
// and that the secret is valid base64.
func (c *Config) RequirePrivate() error {
	if c.Kraken.APIKey == "" {
		return fmt.Errorf("KRAKEN_API_KEY is required")
	}
	if c.Kraken.APISecret == "" {
		return fmt.Errorf("KRAKEN_API_PRIVATE_KEY is required")
	}
	if _, err := base64.StdEncoding.DecodeString(c.Kraken.APISecret); err != nil {
		return fmt.Errorf("KRAKEN_API_PRIVATE_KEY is not valid base64")
	}
	return nil
}

// HasCredentials reports whether both key and secret are set
func (c *Config) HasCredentials() bool {
	return c.Kraken.APIKey != "" && c.Kraken.APISecret != ""
}

// String renders the configuration without secrets
func (c *Config) String() string {
	key := "<unset>"
	if c.Kraken.APIKey != "" {
		key = redact(c.Kraken.APIKey)
	}
	return fmt.Sprintf("kraken=%s key=%s secret=%s db=%s server=%s:%d log=%s",
		c.Kraken.BaseURL, key, maskSet(c.Kraken.APISecret), c.Storage.DBPath,
		c.Server.Host, c.Server.Port, c.Logging.Level)
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

func maskSet(s string) string {
	if s == "" {
		return "<unset>"
	}
	return "<redacted>"
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
