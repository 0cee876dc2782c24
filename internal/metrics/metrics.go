// Package metrics provides Prometheus metrics for the workflow engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts completed executions by final status.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "executions_total",
			Help:      "Total number of workflow executions by final status",
		},
		[]string{"status"}, // "completed", "failed"
	)

	// ExecutionsActive tracks currently running executions.
	ExecutionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "executions_active",
			Help:      "Number of currently running executions",
		},
	)

	// ExecutionDuration tracks execution wall-clock duration.
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dagflow",
			Name:      "execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)

	// NodesTotal counts node invocations by outcome.
	NodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "nodes_total",
			Help:      "Total number of node invocations by outcome",
		},
		[]string{"status"}, // "completed", "failed"
	)

	// NodeDuration tracks node execution duration.
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dagflow",
			Name:      "node_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dagflow",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// StateStoreOperations counts StateStore operations by result, used
	// by internal/execstate to observe Redis/memory backend health.
	StateStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "state_store_operations_total",
			Help:      "Total number of StateStore operations",
		},
		[]string{"operation", "result"}, // result: success, error
	)

	// K8sJobsTotal counts CodeNode Kubernetes Job dispatches by status.
	K8sJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "k8s_jobs_total",
			Help:      "Total number of CodeNode Kubernetes jobs created",
		},
		[]string{"status"},
	)

	// K8sJobDuration tracks CodeNode Kubernetes Job duration.
	K8sJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dagflow",
			Name:      "k8s_job_duration_seconds",
			Help:      "CodeNode Kubernetes job execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// SSEActiveConnections tracks the number of open execution event streams.
	SSEActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "sse_active_connections",
			Help:      "Number of active SSE connections streaming execution events",
		},
	)

	// SSEConnectionDuration tracks how long SSE connections stay open.
	SSEConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dagflow",
			Name:      "sse_connection_duration_seconds",
			Help:      "Duration of SSE connections in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		},
	)
)
