package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for sessions, tasks, and broadcasts.
type Metrics struct {
	registry *prometheus.Registry

	tasksTotal   *prometheus.CounterVec
	taskDuration prometheus.Histogram
	tokensTotal  *prometheus.CounterVec
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redclaw_tasks_total",
			Help: "Tasks finished, by terminal status.",
		}, []string{"status"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redclaw_task_duration_seconds",
			Help:    "Task execution duration.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redclaw_tokens_total",
			Help: "Model tokens consumed, by type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(m.tasksTotal, m.taskDuration, m.tokensTotal)
	return m
}

// RegisterGauges exposes live session and task counts via callbacks.
func (m *Metrics) RegisterGauges(sessions, tasks func() float64) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "redclaw_sessions_active",
			Help: "Currently active sessions.",
		}, sessions),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "redclaw_tasks_tracked",
			Help: "Tasks currently tracked by the orchestrator.",
		}, tasks),
	)
}

// ObserveTask records one finished task.
func (m *Metrics) ObserveTask(status string, seconds float64) {
	m.tasksTotal.WithLabelValues(status).Inc()
	m.taskDuration.Observe(seconds)
}

// AddTokens records token consumption from one task.
func (m *Metrics) AddTokens(prompt, completion int) {
	m.tokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensTotal.WithLabelValues("completion").Add(float64(completion))
}

// Handler serves the metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
