package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skalenetwork/portal-sub000/portal/models"
	"github.com/skalenetwork/portal-sub000/portal/progress"
)

const namespace = "portal"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	progressEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "actions",
		Name:      "progress_events_total",
		Help:      "Action progress events by action and state",
	}, []string{"action", "state"})

	confirmedTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "actions",
		Name:      "transactions_total",
		Help:      "Included transactions by action",
	}, []string{"action"})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "clients",
		Help:      "Connected progress stream clients",
	})
)

// MetricsSink counts progress events. Attach it next to the bus with progress.Multi.
func MetricsSink() progress.Sink {
	return progress.SinkFunc(func(e models.ProgressEvent) {
		progressEvents.WithLabelValues(e.ActionName, string(e.ActionState)).Inc()
		if e.HasTransaction() {
			confirmedTransactions.WithLabelValues(e.ActionName).Inc()
		}
	})
}
