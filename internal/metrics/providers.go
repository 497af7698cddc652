package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(providerCalls, providerLatency)
}

var (
	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidforge_provider_calls_total",
			Help: "External generation calls by provider, model and success.",
		},
		[]string{"provider", "model", "success"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidforge_provider_call_seconds",
			Help:    "External generation call latency, including polling.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480, 900},
		},
		[]string{"provider", "model"},
	)
)

// ProviderCall records one video or narration generation call.
func ProviderCall(provider, model string, success bool, d time.Duration) {
	providerCalls.WithLabelValues(norm(provider), norm(model), boolLabel(success)).Inc()
	providerLatency.WithLabelValues(norm(provider), norm(model)).Observe(d.Seconds())
}
