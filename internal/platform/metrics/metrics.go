package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Dispatches         *prometheus.CounterVec
	DispatchDuration   *prometheus.HistogramVec
	AuditSinkFailures  *prometheus.CounterVec
	SagaSteps          *prometheus.CounterVec
	RemoteCalls        *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec
	Notifications      *prometheus.CounterVec
	PermissionResolves prometheus.Counter
}

// New registers all metrics on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration against the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medishift_action_dispatch_total",
			Help: "Action dispatches by action id and outcome kind (ok on success)",
		}, []string{"action_id", "outcome"}),
		DispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medishift_action_dispatch_duration_seconds",
			Help:    "Wall time of a dispatch, lookup through terminal audit",
			Buckets: prometheus.DefBuckets,
		}, []string{"action_id"}),
		AuditSinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medishift_audit_sink_failures_total",
			Help: "Audit events the primary sink failed to persist",
		}, []string{"action_id"}),
		SagaSteps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medishift_saga_steps_total",
			Help: "Saga step executions by saga kind and result",
		}, []string{"kind", "result"}),
		RemoteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medishift_remote_calls_total",
			Help: "Remote procedure calls by procedure and result",
		}, []string{"procedure", "result"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "medishift_remote_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"breaker"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medishift_notifications_total",
			Help: "User notifications by channel and result",
		}, []string{"channel", "result"}),
		PermissionResolves: f.NewCounter(prometheus.CounterOpts{
			Name: "medishift_permission_resolutions_total",
			Help: "Permission set resolutions that reached the membership store",
		}),
	}
}

func (m *Metrics) ObserveDispatch(actionID, outcome string, d time.Duration) {
	m.Dispatches.WithLabelValues(actionID, outcome).Inc()
	m.DispatchDuration.WithLabelValues(actionID).Observe(d.Seconds())
}

func (m *Metrics) IncAuditSinkFailure(actionID string) {
	m.AuditSinkFailures.WithLabelValues(actionID).Inc()
}

func (m *Metrics) IncSagaStep(kind, result string) {
	m.SagaSteps.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncRemoteCall(procedure, result string) {
	m.RemoteCalls.WithLabelValues(procedure, result).Inc()
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	m.BreakerState.WithLabelValues(name).Set(state)
}

func (m *Metrics) IncNotification(channel, result string) {
	m.Notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) IncPermissionResolve() {
	m.PermissionResolves.Inc()
}
