package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const keySep = "|"

// NewCollector creates a new metrics collector with default latency buckets
func NewCollector() *Collector {
	return NewCollectorWithBuckets(DefaultLatencyBuckets)
}

// NewCollectorWithBuckets creates a new metrics collector with custom histogram buckets
func NewCollectorWithBuckets(buckets []float64) *Collector {
	c := &Collector{histogramBuckets: buckets}
	c.reset()
	return c
}

// RecordHTTPRequest increments the HTTP request counter
func (c *Collector) RecordHTTPRequest(method, route string, status int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.requestCounter[buildKey(method, route, strconv.Itoa(status))]++
}

// RecordHTTPDuration records HTTP request duration in seconds
func (c *Collector) RecordHTTPDuration(method, route string, duration float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := buildKey(method, route)
	c.requestHistogram[key] = append(c.requestHistogram[key], duration)
}

// ObserveCall records one outbound Kraken call. It satisfies rest.Observer.
func (c *Collector) ObserveCall(endpoint, outcome string, duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.krakenCallCounter[buildKey(endpoint, outcome)]++
	c.krakenLatencyHist[endpoint] = append(c.krakenLatencyHist[endpoint], duration.Seconds())
}

// RecordForecast counts a served forecast by pair and trend
func (c *Collector) RecordForecast(pair, trend string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.forecastCounter[buildKey(pair, trend)]++
}

// RecordCustomCounter increments a custom counter
func (c *Collector) RecordCustomCounter(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.customCounters[name]++
}

// GetSnapshot returns a point-in-time view of all metrics
func (c *Collector) GetSnapshot() MetricSnapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var counters []CounterEntry
	var histograms []HistogramEntry

	addCounters := func(name string, values map[string]int64, labels ...string) {
		for key, count := range values {
			parts := parseKey(key)
			if len(parts) != len(labels) {
				continue
			}
			entry := CounterEntry{Name: name, Value: count, Labels: make(map[string]string, len(labels))}
			for i, label := range labels {
				entry.Labels[label] = parts[i]
			}
			counters = append(counters, entry)
		}
	}
	addHistograms := func(name string, values map[string][]float64, labels ...string) {
		for key, samples := range values {
			parts := parseKey(key)
			if len(parts) != len(labels) {
				continue
			}
			for _, v := range samples {
				entry := HistogramEntry{Name: name, Value: v, Labels: make(map[string]string, len(labels))}
				for i, label := range labels {
					entry.Labels[label] = parts[i]
				}
				histograms = append(histograms, entry)
			}
		}
	}

	addCounters("http_requests_total", c.requestCounter, "method", "route", "status")
	addHistograms("http_request_duration_seconds", c.requestHistogram, "method", "route")
	addCounters("kraken_calls_total", c.krakenCallCounter, "endpoint", "outcome")
	addHistograms("kraken_call_duration_seconds", c.krakenLatencyHist, "endpoint")
	addCounters("forecasts_total", c.forecastCounter, "pair", "trend")

	for name, count := range c.customCounters {
		counters = append(counters, CounterEntry{Name: name, Value: count, Labels: map[string]string{}})
	}

	return MetricSnapshot{
		Counters:   counters,
		Histograms: histograms,
		Timestamp:  time.Now(),
		StartTime:  c.startTime,
	}
}

// Reset clears all metrics
func (c *Collector) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.reset()
}

func (c *Collector) reset() {
	c.requestCounter = make(map[string]int64)
	c.requestHistogram = make(map[string][]float64)
	c.krakenCallCounter = make(map[string]int64)
	c.krakenLatencyHist = make(map[string][]float64)
	c.forecastCounter = make(map[string]int64)
	c.customCounters = make(map[string]int64)
	c.startTime = time.Now()
}

// Collect returns Prometheus-formatted metrics
func (c *Collector) Collect() (string, error) {
	snapshot := c.GetSnapshot()
	var lines []string

	uptime := snapshot.Timestamp.Sub(snapshot.StartTime).Seconds()
	lines = append(lines, "# HELP krakenbot_uptime_seconds Time since the server started")
	lines = append(lines, "# TYPE krakenbot_uptime_seconds counter")
	lines = append(lines, fmt.Sprintf("krakenbot_uptime_seconds %f", uptime))
	lines = append(lines, "")

	counterGroups := lo.GroupBy(snapshot.Counters, func(e CounterEntry) string { return e.Name })
	for _, metricName := range sortedKeys(counterGroups) {
		lines = append(lines, fmt.Sprintf("# HELP %s %s", metricName, getCounterHelp(metricName)))
		lines = append(lines, fmt.Sprintf("# TYPE %s counter", metricName))

		series := lo.Map(counterGroups[metricName], func(e CounterEntry, _ int) string {
			return fmt.Sprintf("%s%s %d", metricName, formatLabels(e.Labels), e.Value)
		})
		sort.Strings(series)
		lines = append(lines, series...)
		lines = append(lines, "")
	}

	histogramGroups := lo.GroupBy(snapshot.Histograms, func(e HistogramEntry) string { return e.Name })
	for _, metricName := range sortedKeys(histogramGroups) {
		lines = append(lines, fmt.Sprintf("# HELP %s %s", metricName, getHistogramHelp(metricName)))
		lines = append(lines, fmt.Sprintf("# TYPE %s histogram", metricName))

		labelGroups := make(map[string][]float64)
		for _, hist := range histogramGroups[metricName] {
			labelKey := formatLabels(hist.Labels)
			labelGroups[labelKey] = append(labelGroups[labelKey], hist.Value)
		}

		for _, labelKey := range sortedKeys(labelGroups) {
			values := labelGroups[labelKey]
			bucketCounts := c.calculateBucketCounts(values)

			for i, bucketLimit := range c.histogramBuckets {
				lines = append(lines, fmt.Sprintf("%s_bucket%s %d",
					metricName, addBucketLabel(labelKey, strconv.FormatFloat(bucketLimit, 'g', -1, 64)), bucketCounts[i]))
			}
			lines = append(lines, fmt.Sprintf("%s_bucket%s %d", metricName, addBucketLabel(labelKey, "+Inf"), len(values)))
			lines = append(lines, fmt.Sprintf("%s_sum%s %f", metricName, labelKey, lo.Sum(values)))
			lines = append(lines, fmt.Sprintf("%s_count%s %d", metricName, labelKey, len(values)))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n"), nil
}

func buildKey(parts ...string) string {
	return strings.Join(parts, keySep)
}

func parseKey(key string) []string {
	return strings.Split(key, keySep)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func getCounterHelp(metricName string) string {
	switch metricName {
	case "http_requests_total":
		return "Total number of HTTP requests"
	case "kraken_calls_total":
		return "Total number of Kraken API calls by outcome"
	case "forecasts_total":
		return "Total number of forecasts computed by trend"
	default:
		return "Custom counter metric"
	}
}

func getHistogramHelp(metricName string) string {
	switch metricName {
	case "http_request_duration_seconds":
		return "HTTP request duration in seconds"
	case "kraken_call_duration_seconds":
		return "Kraken API call latency in seconds"
	default:
		return "Custom histogram metric"
	}
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(labels))
	for _, key := range sortedKeys(labels) {
		value := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(labels[key])
		pairs = append(pairs, fmt.Sprintf(`%s="%s"`, key, value))
	}

	return "{" + strings.Join(pairs, ",") + "}"
}

func addBucketLabel(existingLabels, bucketLimit string) string {
	if existingLabels == "" {
		return fmt.Sprintf(`{le="%s"}`, bucketLimit)
	}

	trimmed := strings.TrimSuffix(existingLabels, "}")
	return fmt.Sprintf(`%s,le="%s"}`, trimmed, bucketLimit)
}

func (c *Collector) calculateBucketCounts(values []float64) []int {
	bucketCounts := make([]int, len(c.histogramBuckets))

	// cumulative: a value counts toward every bucket at or above it
	for _, value := range values {
		for i, bucketLimit := range c.histogramBuckets {
			if value <= bucketLimit {
				bucketCounts[i]++
			}
		}
	}

	return bucketCounts
}
