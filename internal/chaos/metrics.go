package chaos

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports engine activity to Prometheus. A nil *Metrics is valid and
// turns every method into a no-op, so the engine never branches on it.
type Metrics struct {
	registry *prometheus.Registry

	decisions       *prometheus.CounterVec
	triggers        *prometheus.CounterVec
	actionFailures  *prometheus.CounterVec
	decisionSeconds prometheus.Histogram
}

// NewMetrics builds instrumentation under the given namespace with a private
// registry, including the standard Go runtime collectors.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chaos",
			Name:      "decisions_total",
			Help:      "Trigger decisions by scenario and outcome",
		}, []string{"scenario", "outcome"}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chaos",
			Name:      "triggers_total",
			Help:      "Recorded chaos triggers by scenario",
		}, []string{"scenario"}),
		actionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chaos",
			Name:      "action_failures_total",
			Help:      "Injected actions that returned an error or panicked",
		}, []string{"scenario"}),
		decisionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chaos",
			Name:      "decision_duration_seconds",
			Help:      "Latency of ShouldTrigger evaluations",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}

	registry.MustRegister(m.decisions, m.triggers, m.actionFailures, m.decisionSeconds)
	return m
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

func (m *Metrics) observeDecision(scenario string, triggered bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "skip"
	if triggered {
		outcome = "trigger"
	}
	m.decisions.WithLabelValues(scenario, outcome).Inc()
	if d > 0 {
		m.decisionSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) recordTrigger(scenario string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(scenario).Inc()
}

func (m *Metrics) recordActionFailure(scenario string) {
	if m == nil {
		return
	}
	m.actionFailures.WithLabelValues(scenario).Inc()
}
