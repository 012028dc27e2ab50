package chart

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krakenbot/internal/forecast"
)

var start = time.Date(2021, 3, 25, 0, 0, 0, 0, time.UTC)

func testData(t *testing.T) (forecast.Series, *forecast.Result) {
	t.Helper()
	history := make(forecast.Series, 24)
	for i := range history {
		history[i] = forecast.Point{Time: start.Add(time.Duration(i) * time.Hour), Value: 100 + float64(i%5)}
	}
	fc, err := forecast.NewLinearModel(0, 0).Forecast(context.Background(), forecast.Input{Target: history}, 6, time.Hour)
	require.NoError(t, err)
	return history, fc
}

func TestFileName(t *testing.T) {
	ts := time.Unix(1616662800, 0)
	assert.Equal(t, "XBT-USD-1616662800.svg", FileName("XBT/USD", ts))
	assert.Equal(t, "chart-1616662800.svg", FileName("///", ts))
}

func TestRender(t *testing.T) {
	history, fc := testData(t)

	svg := Render("XBT/USD <1h>", history, fc)

	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Contains(t, svg, `class="history"`)
	assert.Contains(t, svg, `class="forecast"`)
	assert.Contains(t, svg, `class="band"`)
	assert.Contains(t, svg, `class="window"`)
	assert.Contains(t, svg, "XBT/USD &lt;1h&gt;")
	assert.NotContains(t, svg, "NaN")
}

func TestRender_HistoryOnly(t *testing.T) {
	history, _ := testData(t)

	svg := Render("flat", history[:1], nil)
	assert.Contains(t, svg, `class="history"`)
	assert.NotContains(t, svg, `class="window"`)
	assert.NotContains(t, svg, "NaN")
}

func TestSVGPlotter_Plot(t *testing.T) {
	history, fc := testData(t)
	dir := filepath.Join(t.TempDir(), "charts")

	plotter := NewSVGPlotter(dir)
	plotter.now = func() time.Time { return time.Unix(1700000000, 0) }

	path, err := plotter.Plot(context.Background(), "XBT/USD", history, fc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "XBT-USD-1700000000.svg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "</svg>")

	_, err = plotter.Plot(context.Background(), "empty", nil, nil)
	assert.Error(t, err)
}
