package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module. IsVerified sits
// on the feed-rendering path, so its latency gets a histogram of its own.
type Metrics struct {
	PostsVerified       prometheus.Counter
	PostsUnverified     prometheus.Counter
	IsVerifiedDuration  prometheus.Histogram
	VerifyConflictRaces prometheus.Counter
}

// New creates a Metrics instance with all verification module metrics registered.
func New() *Metrics {
	return &Metrics{
		PostsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_post_verifications_total",
			Help: "Total number of post verifications created",
		}),
		PostsUnverified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_post_unverifications_total",
			Help: "Total number of post verifications retracted",
		}),
		IsVerifiedDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:       "vouch_is_verified_duration_seconds",
			Help:       "Duration of IsVerified reads (feed rendering critical path)",
			Buckets:    []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		VerifyConflictRaces: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_post_verification_conflicts_total",
			Help: "Total number of Verify attempts rejected by the one-active-per-post constraint",
		}),
	}
}

func (m *Metrics) IncrementVerified()   { m.PostsVerified.Inc() }
func (m *Metrics) IncrementUnverified() { m.PostsUnverified.Inc() }
func (m *Metrics) IncrementConflict()   { m.VerifyConflictRaces.Inc() }

// ObserveIsVerified records the duration of an IsVerified read.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveIsVerified(start time.Time) {
	m.IsVerifiedDuration.Observe(time.Since(start).Seconds())
}
