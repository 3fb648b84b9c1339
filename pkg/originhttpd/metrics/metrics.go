// Package metrics exposes Prometheus counters and gauges for session,
// request, and streaming activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsOpened counts accepted connections.
	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "originhttpd",
		Name:      "sessions_opened_total",
		Help:      "Total number of sessions accepted.",
	})

	// SessionsActive tracks currently live sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "originhttpd",
		Name:      "sessions_active",
		Help:      "Number of sessions currently open.",
	})

	// RequestsServed counts completed request/response cycles, labeled
	// by the outcome status code.
	RequestsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "originhttpd",
		Name:      "requests_served_total",
		Help:      "Total number of requests served, by status code.",
	}, []string{"status"})

	// StaticBytesStreamed counts bytes sent by the Static File Responder.
	StaticBytesStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "originhttpd",
		Subsystem: "static",
		Name:      "bytes_streamed_total",
		Help:      "Total bytes streamed by the static file responder.",
	})

	// DynamicInvocations counts plugin handler invocations, labeled by
	// method (get/post).
	DynamicInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "originhttpd",
		Subsystem: "dynamic",
		Name:      "invocations_total",
		Help:      "Total number of dynamic handler invocations.",
	}, []string{"method"})

	// TimerFires counts connection-timeout and keep-alive-timeout fires,
	// labeled by timer kind.
	TimerFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "originhttpd",
		Name:      "timer_fires_total",
		Help:      "Total number of session timer fires, by kind.",
	}, []string{"kind"})
)

// Handler returns the HTTP handler to mount on the metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
