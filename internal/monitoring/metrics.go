package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors for the pipeline.
type Metrics struct {
	RunsTotal             *prometheus.CounterVec
	ContributorsProcessed prometheus.Counter
	ContributorFailures   prometheus.Counter
	ContributorScore      prometheus.Histogram
	SummaryCalls          *prometheus.CounterVec
	RunDuration           prometheus.Histogram
}

// NewMetrics registers the pipeline collectors on the given registerer.
// Pass prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contribpulse",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		ContributorsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contribpulse",
			Name:      "contributors_processed_total",
			Help:      "Contributors successfully scored.",
		}),
		ContributorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contribpulse",
			Name:      "contributor_failures_total",
			Help:      "Contributors whose scoring failed.",
		}),
		ContributorScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contribpulse",
			Name:      "contributor_score",
			Help:      "Distribution of composite contributor scores.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		SummaryCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contribpulse",
			Name:      "summary_calls_total",
			Help:      "Narrative summary generation calls by outcome.",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contribpulse",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
