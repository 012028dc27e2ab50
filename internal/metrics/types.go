package metrics

import (
	"sync"
	"time"
)

// Collector handles Prometheus metrics collection
type Collector struct {
	// HTTP request metrics
	requestCounter   map[string]int64     // [method|route|status]
	requestHistogram map[string][]float64 // [method|route] -> durations

	// Outbound Kraken calls
	krakenCallCounter map[string]int64     // [endpoint|outcome]
	krakenLatencyHist map[string][]float64 // [endpoint] -> durations

	// Forecasts served
	forecastCounter map[string]int64 // [pair|trend]

	customCounters map[string]int64

	mutex sync.RWMutex

	histogramBuckets []float64
	startTime        time.Time
}

// HistogramEntry represents a histogram data point
type HistogramEntry struct {
	Name   string
	Value  float64
	Labels map[string]string
}

// CounterEntry represents a counter data point
type CounterEntry struct {
	Name   string
	Value  int64
	Labels map[string]string
}

// MetricSnapshot represents a point-in-time view of all metrics
type MetricSnapshot struct {
	Counters   []CounterEntry
	Histograms []HistogramEntry
	Timestamp  time.Time
	StartTime  time.Time
}

// Default histogram buckets for latency measurements (in seconds)
var DefaultLatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0,
}
