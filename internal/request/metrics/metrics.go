package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the institution request module.
type Metrics struct {
	RequestsSubmitted  prometheus.Counter
	RequestsCancelled  prometheus.Counter
	RequestsApproved   prometheus.Counter
	RequestsRejected   prometheus.Counter
	SubmitDuration     prometheus.Histogram
	ReviewDuration     prometheus.Histogram
	DocumentRejections prometheus.Counter
}

// New creates a Metrics instance with all request module metrics registered.
func New() *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_institution_requests_submitted_total",
			Help: "Total number of institution requests submitted",
		}),
		RequestsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_institution_requests_cancelled_total",
			Help: "Total number of institution requests cancelled by their owner",
		}),
		RequestsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_institution_requests_approved_total",
			Help: "Total number of institution requests approved",
		}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_institution_requests_rejected_total",
			Help: "Total number of institution requests rejected",
		}),
		SubmitDuration:  promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouch_institution_request_submit_duration_seconds",
			Help:    "Duration of Submit operations (includes document upload)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ReviewDuration:  promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouch_institution_request_review_duration_seconds",
			Help:    "Duration of Approve/Reject operations (transactional path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		DocumentRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_institution_request_document_rejections_total",
			Help: "Total number of submissions rejected by document validation",
		}),
	}
}

func (m *Metrics) IncrementSubmitted() { m.RequestsSubmitted.Inc() }
func (m *Metrics) IncrementCancelled() { m.RequestsCancelled.Inc() }
func (m *Metrics) IncrementApproved()  { m.RequestsApproved.Inc() }
func (m *Metrics) IncrementRejected()  { m.RequestsRejected.Inc() }

// ObserveSubmit records the duration of a Submit operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

// ObserveReview records the duration of an Approve or Reject operation.
func (m *Metrics) ObserveReview(start time.Time) {
	m.ReviewDuration.Observe(time.Since(start).Seconds())
}
