// Package metrics holds the Prometheus collectors for pipeline tasks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	taskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "customer_pipeline_task_runs_total",
		Help: "Task runs by task name and final state",
	}, []string{"task", "state"})

	taskRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "customer_pipeline_task_retries_total",
		Help: "Task retries by task name",
	}, []string{"task"})

	taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "customer_pipeline_task_duration_seconds",
		Help:    "Task latency distribution",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"task"})

	taskRows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "customer_pipeline_task_rows",
		Help: "Rows produced by the last successful run of a task",
	}, []string{"task"})

	flowRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "customer_pipeline_flow_runs_total",
		Help: "Flow runs by flow name and outcome",
	}, []string{"flow", "outcome"})
)

func init() {
	Registry.MustRegister(
		taskRuns, taskRetries, taskDuration, taskRows, flowRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveTask records one finished task attempt sequence.
func ObserveTask(task, state string, elapsed time.Duration) {
	taskRuns.WithLabelValues(task, state).Inc()
	taskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// ObserveRetry records a retry of task.
func ObserveRetry(task string) {
	taskRetries.WithLabelValues(task).Inc()
}

// SetRows records the row count a task produced.
func SetRows(task string, rows int) {
	taskRows.WithLabelValues(task).Set(float64(rows))
}

// ObserveFlow records a flow outcome ("succeeded" or "failed").
func ObserveFlow(flow, outcome string) {
	flowRuns.WithLabelValues(flow, outcome).Inc()
}
