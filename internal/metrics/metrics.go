// Package metrics provides Prometheus instrumentation for the VentureChat
// gateway: gauges for live connection counts, counters for message
// throughput, and a histogram for send latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket sessions.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "venturechat_connections_total",
		Help: "Current number of active WebSocket sessions",
	})

	// MessagesTotal counts messages processed, labeled by outcome:
	// "persisted", "rejected", or "rate_limited".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "venturechat_messages_total",
		Help: "Total number of messages processed",
	}, []string{"outcome"})

	// SendLatency records persist-and-publish latency in seconds.
	SendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "venturechat_send_latency_seconds",
		Help:    "Message persist-and-publish latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// UploadsTotal counts image uploads, labeled by outcome:
	// "accepted", "rejected".
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "venturechat_uploads_total",
		Help: "Total number of image upload attempts",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MessagesTotal,
		SendLatency,
		UploadsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
