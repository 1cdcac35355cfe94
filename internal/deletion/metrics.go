package deletion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"erasure/internal/deletion/models"
)

type Metrics struct {
	JobRuns       *prometheus.CounterVec
	Accounts      *prometheus.CounterVec
	RowsDeleted   *prometheus.CounterVec
	PurgeDuration prometheus.Histogram
	JobDuration   prometheus.Histogram
	LastRun       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "erasure_deletion_job_runs_total",
			Help: "Deletion job invocations by trigger",
		}, []string{"trigger"}),
		Accounts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "erasure_deletion_accounts_total",
			Help: "Accounts processed by the deletion job, by result",
		}, []string{"result"}),
		RowsDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "erasure_deletion_rows_deleted_total",
			Help: "Account-owned rows removed by committed purges",
		}, []string{"resource"}),
		PurgeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "erasure_deletion_purge_duration_seconds",
			Help:    "Duration of single-account purges",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		JobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "erasure_deletion_job_duration_seconds",
			Help:    "Duration of deletion job runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "erasure_deletion_job_last_run_timestamp_seconds",
			Help: "Unix time the last deletion job run finished",
		}),
	}
}

func (m *Metrics) observePurge(seconds float64, counts map[string]int64) {
	if m == nil {
		return
	}
	m.PurgeDuration.Observe(seconds)
	for resource, n := range counts {
		m.RowsDeleted.WithLabelValues(resource).Add(float64(n))
	}
}

func (m *Metrics) observeRun(run *models.JobRun) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(string(run.Trigger)).Inc()
	m.Accounts.WithLabelValues("success").Add(float64(run.SuccessCount))
	m.Accounts.WithLabelValues("failed").Add(float64(run.FailureCount))
	m.Accounts.WithLabelValues("skipped").Add(float64(run.SkippedCount))
	m.JobDuration.Observe(run.Duration().Seconds())
	m.LastRun.Set(float64(run.EndTime.Unix()))
}
