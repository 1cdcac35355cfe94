package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "erasure_audit_entries_emitted_total",
			Help: "Audit entries persisted, by action and result",
		}, []string{"action", "result"}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "erasure_audit_persist_failures_total",
			Help: "Audit entries that could not be persisted",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "erasure_audit_persist_duration_seconds",
			Help:    "Duration of synchronous audit writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncEventsEmitted(action, result string) {
	m.EventsEmitted.WithLabelValues(action, result).Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	m.PersistDuration.Observe(seconds)
}
