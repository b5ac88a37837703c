// Package metrics provides Prometheus metrics for the clinic workflow engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	SessionsStarted       prometheus.Counter
	SessionsCompleted     prometheus.Counter
	StepsCompleted        *prometheus.CounterVec
	StepDuration          *prometheus.HistogramVec
	ActiveSessions        prometheus.Gauge
	ReportsSent           prometheus.Counter
	ReportsFailed         prometheus.Counter
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workflow_sessions_started_total",
			Help: "Total workflow sessions started",
		}),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workflow_sessions_completed_total",
			Help: "Total workflow sessions finished with a sent report",
		}),
		StepsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_steps_completed_total",
			Help: "Total step completions by step number",
		}, []string{"step"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workflow_step_duration_seconds",
			Help:    "Time spent persisting a step completion",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"step"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workflow_sessions_active",
			Help: "Currently open workflow sessions",
		}),
		ReportsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reports_sent_total",
			Help: "Total treatment reports delivered to patients",
		}),
		ReportsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reports_failed_total",
			Help: "Total failed report deliveries",
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.SessionsStarted,
		m.SessionsCompleted,
		m.StepsCompleted,
		m.StepDuration,
		m.ActiveSessions,
		m.ReportsSent,
		m.ReportsFailed,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
