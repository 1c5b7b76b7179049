package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "versionwatch"

type Metrics struct {
	PollOutcomes     *prometheus.CounterVec
	VersionChanges   *prometheus.CounterVec
	PollDuration     *prometheus.HistogramVec
	Deliveries       *prometheus.CounterVec
	DeliveryAttempts prometheus.Counter
}

// NewRegistry returns the registry served on /metrics, preloaded with the
// process and runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PollOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "outcomes_total",
			Help:      "Service polls by outcome.",
		}, []string{"service", "outcome"}),

		VersionChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "version_changes_total",
			Help:      "Version lifecycle transitions detected by polls.",
		}, []string{"service", "change"}),

		PollDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "platform_duration_seconds",
			Help:      "Wall time of polling every service of a platform.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"platform"}),

		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Digest deliveries by outcome.",
		}, []string{"outcome"}),

		DeliveryAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "delivery_attempts_total",
			Help:      "Individual send attempts, including retries.",
		}),
	}
}
