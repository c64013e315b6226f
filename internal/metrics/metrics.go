package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	turnsTotal       *prometheus.CounterVec
	completionsTotal *prometheus.CounterVec
	bookingsTotal    *prometheus.CounterVec

	completionLatency *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		turnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexusbot",
			Name:      "turns_total",
			Help:      "Total number of widget chat turns.",
		}, []string{"result"}),
		completionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexusbot",
			Name:      "completions_total",
			Help:      "Total number of completion requests by outcome.",
		}, []string{"result"}),
		bookingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexusbot",
			Name:      "bookings_total",
			Help:      "Total number of booking directives seen in model output.",
		}, []string{"result"}),
		completionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexusbot",
			Name:      "completion_latency_seconds",
			Help:      "Latency distribution for completion requests.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"result"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func Turn(result string) {
	getMetrics().turnsTotal.WithLabelValues(result).Inc()
}

func Completion(result string, seconds float64) {
	m := getMetrics()
	m.completionsTotal.WithLabelValues(result).Inc()
	m.completionLatency.WithLabelValues(result).Observe(seconds)
}

func Booking(result string) {
	getMetrics().bookingsTotal.WithLabelValues(result).Inc()
}
