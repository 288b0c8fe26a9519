package hermes

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// helpText maps known metric names to their help strings. Unknown names
// fall back to the name itself.
var helpText = map[string]string{
	MetricAuthRequests:   "Identity resolutions handled by the auth client, by outcome.",
	MetricCacheHits:      "Token lookups answered from the identity cache.",
	MetricCacheMisses:    "Token lookups that required a hub round trip.",
	MetricHubRequestSecs: "Latency of REST calls to the hub API.",
}

// PrometheusMetrics is a Metrics sink backed by a prometheus Registerer.
// Vectors are created and registered the first time a name is observed,
// using the label keys of that first observation.
type PrometheusMetrics struct {
	reg        prometheus.Registerer
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	mu         sync.RWMutex
}

// NewPrometheusMetrics registers against the default registerer.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWith(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWith registers against the given registerer.
func NewPrometheusMetricsWith(reg prometheus.Registerer) *PrometheusMetrics {
	return &PrometheusMetrics{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

func splitLabels(labels []Label) ([]string, []string) {
	keys := make([]string, len(labels))
	values := make([]string, len(labels))
	for i, l := range labels {
		keys[i] = l.Key
		values[i] = l.Value
	}
	return keys, values
}

func help(name string) string {
	if h, ok := helpText[name]; ok {
		return h
	}
	return name
}

func (m *PrometheusMetrics) IncCounter(name string, value float64, labels ...Label) {
	m.mu.RLock()
	vec, ok := m.counters[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		vec, ok = m.counters[name]
		if !ok {
			keys, _ := splitLabels(labels)
			vec = prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: name,
				Help: help(name),
			}, keys)
			m.reg.MustRegister(vec)
			m.counters[name] = vec
		}
		m.mu.Unlock()
	}

	_, values := splitLabels(labels)
	vec.WithLabelValues(values...).Add(value)
}

func (m *PrometheusMetrics) ObserveHistogram(name string, value float64, labels ...Label) {
	m.mu.RLock()
	vec, ok := m.histograms[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		vec, ok = m.histograms[name]
		if !ok {
			keys, _ := splitLabels(labels)
			vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    name,
				Help:    help(name),
				Buckets: prometheus.DefBuckets,
			}, keys)
			m.reg.MustRegister(vec)
			m.histograms[name] = vec
		}
		m.mu.Unlock()
	}

	_, values := splitLabels(labels)
	vec.WithLabelValues(values...).Observe(value)
}

func (m *PrometheusMetrics) SetGauge(name string, value float64, labels ...Label) {
	m.mu.RLock()
	vec, ok := m.gauges[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		vec, ok = m.gauges[name]
		if !ok {
			keys, _ := splitLabels(labels)
			vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: name,
				Help: help(name),
			}, keys)
			m.reg.MustRegister(vec)
			m.gauges[name] = vec
		}
		m.mu.Unlock()
	}

	_, values := splitLabels(labels)
	vec.WithLabelValues(values...).Set(value)
}
