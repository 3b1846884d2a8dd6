package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SubmittedTotal counts accepted complaint submissions.
	SubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "civiceye",
		Subsystem: "complaints",
		Name:      "submitted_total",
		Help:      "Total number of complaints accepted for intake.",
	})

	// ClassifiedTotal counts classification attempts by outcome.
	ClassifiedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civiceye",
		Subsystem: "classifier",
		Name:      "classified_total",
		Help:      "Total number of classification attempts, labeled by result.",
	}, []string{"result"})

	// ClassificationDurationSeconds is end-to-end scoring time per complaint.
	ClassificationDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "civiceye",
		Subsystem: "classifier",
		Name:      "duration_seconds",
		Help:      "End-to-end time to score one complaint image.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"result"})

	// WorkerInFlight is the number of classification jobs currently running.
	WorkerInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "civiceye",
		Subsystem: "classifier",
		Name:      "worker_in_flight",
		Help:      "Current number of classification jobs being processed by worker goroutines.",
	})

	// DecisionsTotal counts recorded admin decisions by verdict.
	DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civiceye",
		Subsystem: "decisions",
		Name:      "recorded_total",
		Help:      "Total number of admin decisions recorded, labeled by verdict.",
	}, []string{"verdict"})
)

// Register registers all service metrics with the default Prometheus
// registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SubmittedTotal,
			ClassifiedTotal,
			ClassificationDurationSeconds,
			WorkerInFlight,
			DecisionsTotal,
		)
	})
}
