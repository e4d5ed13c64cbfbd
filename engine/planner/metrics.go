package planner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/WessleyAI/journeyplanner/engine/search"
	"github.com/WessleyAI/journeyplanner/pkg/metrics"
	"github.com/WessleyAI/journeyplanner/pkg/resilience"
)

// Metrics records planner and search activity. A nil *Metrics records
// nothing.
type Metrics struct {
	searches      *prometheus.CounterVec
	journeys      *prometheus.CounterVec
	expanded      *prometheus.CounterVec
	excluded      *prometheus.CounterVec
	searchSeconds *prometheus.HistogramVec
	plans         *prometheus.CounterVec
	planSeconds   *prometheus.HistogramVec
	breaker       *prometheus.GaugeVec
}

// NewMetrics registers the planner metrics on reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		searches:      reg.Counter("searches_total", "Journey searches run.", "expansion"),
		journeys:      reg.Counter("journeys_found_total", "Journeys returned by searches.", "expansion"),
		expanded:      reg.Counter("nodes_expanded_total", "Frontier entries expanded.", "expansion"),
		excluded:      reg.Counter("branches_excluded_total", "Branches rejected by the evaluator.", "expansion"),
		searchSeconds: reg.Histogram("search_seconds", "Search latency.", nil, "expansion"),
		plans:         reg.Counter("plans_total", "Plan requests answered.", "code"),
		planSeconds:   reg.Histogram("plan_seconds", "Plan request latency.", nil),
		breaker:       reg.Gauge("store_breaker_open", "1 while the graph store breaker is open or probing."),
	}
}

// ObserveSearch implements search.Recorder.
func (m *Metrics) ObserveSearch(s search.Stats) {
	if m == nil {
		return
	}
	exp := s.Expansion.String()
	m.searches.WithLabelValues(exp).Inc()
	m.journeys.WithLabelValues(exp).Add(float64(s.Journeys))
	m.expanded.WithLabelValues(exp).Add(float64(s.Expanded))
	m.excluded.WithLabelValues(exp).Add(float64(s.Excluded))
	m.searchSeconds.WithLabelValues(exp).Observe(s.Duration.Seconds())
}

func (m *Metrics) observePlan(code string, started time.Time) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.plans.WithLabelValues(code).Inc()
	metrics.Since(m.planSeconds.WithLabelValues(), started)
}

func (m *Metrics) breakerState(st resilience.State) {
	if m == nil {
		return
	}
	v := 0.0
	if st != resilience.StateClosed {
		v = 1
	}
	m.breaker.WithLabelValues().Set(v)
}
