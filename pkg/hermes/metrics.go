// Package hermes carries telemetry out of the auth pipeline. Metric names
// are dynamic so callers don't have to pre-register every series; the
// prometheus sink registers them on first use.
package hermes

// Label is one metric dimension.
type Label struct {
	Key   string
	Value string
}

// Metrics is the sink the auth client reports to.
type Metrics interface {
	IncCounter(name string, value float64, labels ...Label)
	ObserveHistogram(name string, value float64, labels ...Label)
	SetGauge(name string, value float64, labels ...Label)
}

// Metric names emitted by the auth client.
const (
	MetricAuthRequests   = "elysium_auth_requests_total"
	MetricCacheHits      = "elysium_auth_cache_hits_total"
	MetricCacheMisses    = "elysium_auth_cache_misses_total"
	MetricHubRequestSecs = "elysium_hub_request_duration_seconds"
)

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(name string, value float64, labels ...Label)       {}
func (NoopMetrics) ObserveHistogram(name string, value float64, labels ...Label) {}
func (NoopMetrics) SetGauge(name string, value float64, labels ...Label)         {}
