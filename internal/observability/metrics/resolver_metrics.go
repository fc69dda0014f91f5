package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResolutionOutcomeMatched     = "matched"
	ResolutionOutcomeNoMatch     = "no_match"
	ResolutionOutcomeDuplicate   = "duplicate"
	ResolutionOutcomeError       = "error"
	ResolutionOutcomeUnsupported = "unsupported"
)

// ResolverMetrics captures resolution health for the territory resolver.
type ResolverMetrics struct {
	resolutions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	degraded    *prometheus.CounterVec
	evaluations *prometheus.CounterVec
}

// NewResolverMetrics registers resolver collectors. A nil registerer falls
// back to the default registry.
func NewResolverMetrics(registerer prometheus.Registerer, cfg Config) *ResolverMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "territorial"
	}
	constLabels := prometheus.Labels{"service": serviceName}

	m := &ResolverMetrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "territorial_resolutions_total",
			Help:        "Territory resolutions by outcome.",
			ConstLabels: constLabels,
		}, []string{"assignable_type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "territorial_resolution_duration_seconds",
			Help:        "Time spent evaluating all active territories for one record.",
			ConstLabels: constLabels,
			Buckets:     []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"assignable_type"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "territorial_territory_degraded_total",
			Help:        "Territories treated as non-matching because their rules could not be read.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "territorial_rule_evaluations_total",
			Help:        "Rule evaluations by result.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}

	m.resolutions = registerOrExisting(registerer, m.resolutions)
	m.duration = registerOrExisting(registerer, m.duration)
	m.degraded = registerOrExisting(registerer, m.degraded)
	m.evaluations = registerOrExisting(registerer, m.evaluations)

	return m
}

func (m *ResolverMetrics) ObserveResolution(assignableType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(assignableType, outcome).Inc()
	m.duration.WithLabelValues(assignableType).Observe(elapsed.Seconds())
}

func (m *ResolverMetrics) IncDegraded(reason string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(reason).Inc()
}

func (m *ResolverMetrics) AddEvaluations(matched, rejected int) {
	if m == nil {
		return
	}
	if matched > 0 {
		m.evaluations.WithLabelValues("match").Add(float64(matched))
	}
	if rejected > 0 {
		m.evaluations.WithLabelValues("no_match").Add(float64(rejected))
	}
}

func registerOrExisting[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return collector
}
