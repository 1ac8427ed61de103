package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "obconnect_gateway_send_duration_seconds",
		Help:    "Latency of external API sends",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"operation"})

	sendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obconnect_gateway_send_total",
		Help: "External API sends by operation and outcome",
	}, []string{"operation", "outcome"})
)
