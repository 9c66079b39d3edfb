// Package observability provides Prometheus metrics instrumentation for
// the RMI core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// INVOCATION METRICS
// =============================================================================

var (
	invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmicore_invocations_total",
			Help: "Total number of outbound invocations",
		},
		[]string{"method", "status"}, // status: ok, deferred, timeout, closed, application_error, unknown_method, transport_error
	)

	invocationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rmicore_invocation_duration_seconds",
			Help:    "Outbound invocation round-trip duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method"},
	)
)

// =============================================================================
// DISPATCH METRICS
// =============================================================================

var (
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmicore_dispatches_total",
			Help: "Total number of inbound method executions",
		},
		[]string{"method", "status"}, // status: ok, application_error, unknown_object, unknown_method, resolve_error
	)

	dispatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rmicore_dispatch_duration_seconds",
			Help:    "Time spent executing a dispatched method",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 5},
		},
		[]string{"method"},
	)

	workerPoolQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rmicore_worker_pool_queue_depth",
			Help: "Number of invocation jobs currently queued for a worker",
		},
	)
)

// =============================================================================
// RENDEZVOUS METRICS
// =============================================================================

var (
	rendezvousOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmicore_rendezvous_outcomes_total",
			Help: "Outcomes of rendezvous waits: delivered, timed_out, canceled, ghost_dropped, swept_timeout",
		},
		[]string{"outcome"},
	)

	rendezvousPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rmicore_rendezvous_pending",
			Help: "Number of transactions currently awaiting a result",
		},
	)
)

// =============================================================================
// PROXY METRICS
// =============================================================================

var proxyCacheSizeGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "rmicore_proxy_cache_size",
		Help: "Number of proxies cached per connection",
	},
	[]string{"connection"},
)

// =============================================================================
// GRPC METRICS
// =============================================================================

var (
	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmicore_grpc_requests_total",
			Help: "Total gRPC-carried frames",
		},
		[]string{"direction", "status"}, // direction: outbound, inbound
	)

	grpcRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rmicore_grpc_request_duration_seconds",
			Help:    "gRPC stream send/receive duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"direction"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordInvocation records an outbound invocation's outcome and latency.
func RecordInvocation(method string, status string, durationSeconds float64) {
	invocationsTotal.WithLabelValues(method, status).Inc()
	invocationDurationSeconds.WithLabelValues(method).Observe(durationSeconds)
}

// RecordDispatch records an inbound execution's outcome and latency.
func RecordDispatch(method string, status string, durationSeconds float64) {
	dispatchesTotal.WithLabelValues(method, status).Inc()
	dispatchDurationSeconds.WithLabelValues(method).Observe(durationSeconds)
}

// SetWorkerPoolQueueDepth reports the worker pool's current queue depth.
func SetWorkerPoolQueueDepth(depth int) {
	workerPoolQueueDepth.Set(float64(depth))
}

// RecordRendezvousOutcome records how a rendezvous wait resolved.
func RecordRendezvousOutcome(outcome string) {
	rendezvousOutcomesTotal.WithLabelValues(outcome).Inc()
}

// SetRendezvousPending reports how many transactions are currently pending.
func SetRendezvousPending(count int) {
	rendezvousPendingGauge.Set(float64(count))
}

// SetProxyCacheSize reports how many proxies are cached for a connection.
func SetProxyCacheSize(connectionID string, size int) {
	proxyCacheSizeGauge.WithLabelValues(connectionID).Set(float64(size))
}

// RecordGRPCFrame records a gRPC-carried frame send or receive.
func RecordGRPCFrame(direction string, status string, durationSeconds float64) {
	grpcRequestsTotal.WithLabelValues(direction, status).Inc()
	grpcRequestDurationSeconds.WithLabelValues(direction).Observe(durationSeconds)
}
