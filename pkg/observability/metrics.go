package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "redo"

// Task outcomes used as label values.
const (
	OutcomeSkipped   = "skipped"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Metrics holds the run and task series of one process.
type Metrics struct {
	registry *prometheus.Registry

	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	lastRun      *prometheus.GaugeVec
	lastSuccess  *prometheus.GaugeVec
}

// NewMetrics creates the series and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task decisions by outcome.",
		}, []string{"workflow", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of task reruns.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"workflow"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Workflow runs by result.",
		}, []string{"workflow", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of workflow runs, lock wait included.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"workflow"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}, []string{"workflow"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last completed run succeeded, 0 otherwise.",
		}, []string{"workflow"}),
	}
	m.registry.MustRegister(m.tasks, m.taskDuration, m.runs, m.runDuration, m.lastRun, m.lastSuccess)
	return m
}

// Registry returns the registry holding the series, e.g. to add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Hooks returns lifecycle hooks feeding the task series.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskSkip: func(_ context.Context, e *domain.TaskEvent) {
			m.tasks.WithLabelValues(e.Workflow, OutcomeSkipped).Inc()
		},
		OnTaskFinish: func(_ context.Context, e *domain.TaskEvent) {
			outcome := OutcomeFailed
			if e.Success {
				outcome = OutcomeSucceeded
			}
			m.tasks.WithLabelValues(e.Workflow, outcome).Inc()
			m.taskDuration.WithLabelValues(e.Workflow).Observe(e.Duration.Seconds())
		},
	}
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(workflow string, success bool, d time.Duration, at time.Time) {
	result, flag := OutcomeFailed, 0.0
	if success {
		result, flag = OutcomeSucceeded, 1.0
	}
	m.runs.WithLabelValues(workflow, result).Inc()
	m.runDuration.WithLabelValues(workflow).Observe(d.Seconds())
	m.lastRun.WithLabelValues(workflow).Set(float64(at.UnixNano()) / 1e9)
	m.lastSuccess.WithLabelValues(workflow).Set(flag)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile writes the current series to path for the node_exporter
// textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
