package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krakenbot/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "krakenbot.log")

	logger, closer := New(config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		Output:     path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})

	logger.Debug().Str("pair", "XXBTZUSD").Msg("Fetching candles")
	logger.Trace().Msg("below level")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pair":"XXBTZUSD"`)
	assert.Contains(t, string(data), `"message":"Fetching candles"`)
	assert.NotContains(t, string(data), "below level")
}

func TestNew_TerminalOutput(t *testing.T) {
	logger, closer := New(config.LoggingConfig{Level: "warn", Format: "console", Output: "stderr"})
	defer closer.Close()

	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}
