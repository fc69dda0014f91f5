package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResolverMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewResolverMetrics(reg, Config{ServiceName: "test"})

	m.ObserveResolution("Lead", ResolutionOutcomeMatched, 2*time.Millisecond)
	m.ObserveResolution("Lead", ResolutionOutcomeMatched, time.Millisecond)
	m.ObserveResolution("Lead", ResolutionOutcomeNoMatch, time.Millisecond)
	m.IncDegraded("rules_read")
	m.AddEvaluations(3, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions.WithLabelValues("Lead", ResolutionOutcomeMatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("Lead", ResolutionOutcomeNoMatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded.WithLabelValues("rules_read")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.evaluations.WithLabelValues("match")))
}

func TestResolverMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewResolverMetrics(reg, Config{})
	second := NewResolverMetrics(reg, Config{})

	first.ObserveResolution("Person", ResolutionOutcomeNoMatch, 0)
	second.ObserveResolution("Person", ResolutionOutcomeNoMatch, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(second.resolutions.WithLabelValues("Person", ResolutionOutcomeNoMatch)))
}

func TestNilResolverMetricsIsSafe(t *testing.T) {
	var m *ResolverMetrics
	m.ObserveResolution("Lead", ResolutionOutcomeError, 0)
	m.IncDegraded("rules_read")
	m.AddEvaluations(1, 1)
}
