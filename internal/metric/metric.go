package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onion_gateway"

var (
	// RequestsTotal counts gateway requests by operation and result kind.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of gateway requests by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// RequestDuration measures request handling time in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of gateway requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// HostRejectedTotal counts requests refused by the host guard.
	HostRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "host_rejected_total",
			Help:      "Total number of requests refused by the host allowlist.",
		},
	)

	// ChangeQueueDepth tracks the pending audit journal backlog.
	ChangeQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "change_queue_depth",
			Help:      "Number of change events waiting for a journal worker.",
		},
	)

	// ChangesJournaledTotal counts journaled change events by kind.
	ChangesJournaledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "changes_total",
			Help:      "Total number of journaled change events by kind.",
		},
		[]string{"kind"},
	)
)

func Register() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		HostRejectedTotal,
		ChangeQueueDepth,
		ChangesJournaledTotal,
	)
}

// Handler serves the default registry for the metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
