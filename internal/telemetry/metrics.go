package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики rollup и воркера.
//
// Все методы безопасны для nil *Metrics: компоненты без метрик просто ничего не пишут.
type Metrics struct {
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	invocations   *prometheus.CounterVec
	cascadeEvents prometheus.Counter
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollup_runs_total",
			Help: "Rollup activity runs by result (succeeded, skipped, suppressed, failed)",
		}, []string{"outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollup_stage_duration_seconds",
			Help:    "Duration of rollup stages (resolving, aggregating, updating)",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollup_worker_invocations_total",
			Help: "Invocations finished by the worker, by final status",
		}, []string{"status"}),
		cascadeEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollup_cascade_events_total",
			Help: "record.changed events published for records written by activities",
		}),
	}
}

// RunFinished учитывает завершённый запуск rollup.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// StageFinished учитывает длительность стадии.
func (m *Metrics) StageFinished(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// InvocationFinished учитывает invocation в финальном статусе.
func (m *Metrics) InvocationFinished(status string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(status).Inc()
}

// CascadePublished учитывает опубликованные каскадные события.
func (m *Metrics) CascadePublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cascadeEvents.Add(float64(n))
}
