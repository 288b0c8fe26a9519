package hermes

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetricsWith(reg)

	m.IncCounter(MetricCacheHits, 1)
	m.IncCounter(MetricCacheHits, 2)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, MetricCacheHits, families[0].GetName())
	assert.Equal(t, float64(3), families[0].GetMetric()[0].GetCounter().GetValue())
}

func TestPrometheusLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetricsWith(reg)

	m.IncCounter(MetricAuthRequests, 1, Label{Key: "outcome", Value: "ok"})
	m.IncCounter(MetricAuthRequests, 1, Label{Key: "outcome", Value: "denied"})
	m.IncCounter(MetricAuthRequests, 1, Label{Key: "outcome", Value: "ok"})

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Len(t, families[0].GetMetric(), 2)
}

func TestPrometheusHistogramAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetricsWith(reg)

	m.ObserveHistogram(MetricHubRequestSecs, 0.25, Label{Key: "method", Value: "GET"})
	m.SetGauge("elysium_cache_entries", 12)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)
}

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.IncCounter("x", 1)
		m.ObserveHistogram("x", 1)
		m.SetGauge("x", 1)
	})
}
