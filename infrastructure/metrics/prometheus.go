// Package metrics provides Prometheus-backed operational observability for
// the compute graph engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-gavel/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector using Prometheus. It
// provides real-time visibility into task throughput, queue depth, and
// node execution latency for a running Executor.
//
// Grounded on infrastructure/middleware/prometheus_metrics.go, generalized
// from budget-specific counters/gauges to executor/queue counters/gauges:
// the label set shrinks from (graph_id, evaluation_type, budget_limit) to
// (graph_id, node_id, placement), and the histogram/gauge/counter
// dispatch-by-metric-name idiom is kept unchanged.
type PrometheusMetrics struct {
	tasksCompleted  *prometheus.CounterVec
	tasksFailed     *prometheus.CounterVec
	nodeLatency     *prometheus.HistogramVec
	queueDepth      *prometheus.GaugeVec
	operationCount  *prometheus.CounterVec
	systemGauges    *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// all required metrics in the default Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		tasksCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gavel_tasks_completed_total",
				Help: "Total number of (node, batch) tasks completed by the executor.",
			},
			[]string{"graph_id", "node_id", "placement"},
		),
		tasksFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gavel_tasks_failed_total",
				Help: "Total number of (node, batch) tasks that returned an error.",
			},
			[]string{"graph_id", "node_id", "placement"},
		),
		nodeLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gavel_node_execution_duration_seconds",
				Help:    "Execution time of a single node body invocation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node_id", "placement"},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gavel_queue_depth",
				Help: "Number of tasks currently enqueued awaiting a worker.",
			},
			[]string{"graph_id"},
		),
		operationCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gavel_operations_total",
				Help: "Total number of engine operations by outcome.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gavel_system_state",
				Help: "Current system state values reported by the executor.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements ports.MetricsCollector. "node_execution"
// latencies go to the node-duration histogram; any other operation adds
// its duration in seconds to the operations counter with status
// "observed".
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	nodeID := labels["node_id"]
	placement := labels["placement"]
	if operation == "node_execution" {
		pm.nodeLatency.WithLabelValues(nodeID, placement).Observe(duration.Seconds())
		return
	}
	pm.operationCount.WithLabelValues(operation, "observed").Add(duration.Seconds())
}

// RecordCounter implements ports.MetricsCollector by incrementing the
// counter that matches metric, routing task-completion and task-failure
// events to their dedicated vectors and everything else to the general
// operation counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "tasks_completed":
		pm.tasksCompleted.WithLabelValues(labels["graph_id"], labels["node_id"], labels["placement"]).Add(value)
	case "tasks_failed":
		pm.tasksFailed.WithLabelValues(labels["graph_id"], labels["node_id"], labels["placement"]).Add(value)
	case "progress_guard_tripped":
		pm.operationCount.WithLabelValues("progress_guard", "tripped").Add(value)
	default:
		pm.operationCount.WithLabelValues(metric, "success").Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector by setting the gauge that
// matches metric, routing queue depth to its dedicated vector and
// everything else to the general system-state gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	if metric == "queue_depth" {
		pm.queueDepth.WithLabelValues(labels["graph_id"]).Set(value)
		return
	}
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements ports.MetricsCollector by recording value in
// the node-duration histogram, keyed by the given node_id/placement
// labels when present.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.nodeLatency.WithLabelValues(labels["node_id"], labels["placement"]).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
