// Package revocation is the token revocation list (TRL): JTIs of signed-out
// tokens, kept until the token would have expired anyway.
package revocation

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"erasure/pkg/platform/sentinel"
)

// Clock returns the current time.
type Clock func() time.Time

const revokedTokenKeyPrefix = "trl:jti:"

type Metrics struct {
	lookups *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		lookups: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erasure_token_revocation_lookup_seconds",
			Help:    "Latency of revocation list lookups by backend.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .1},
		}, []string{"backend"}),
	}
}

func (m *Metrics) observe(backend string, start time.Time) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(backend).Observe(time.Since(start).Seconds())
}

type options struct {
	clock   Clock
	metrics *Metrics
}

// Option configures any of the revocation lists.
type Option func(*options)

func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
