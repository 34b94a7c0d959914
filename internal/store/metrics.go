package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records store activity as Prometheus collectors.
// A nil *Metrics records nothing.
type Metrics struct {
	statements *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rollbacks  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rowkit",
			Subsystem: "store",
			Name:      "statements_total",
			Help:      "Statements executed, by operation and outcome.",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rowkit",
			Subsystem: "store",
			Name:      "statement_duration_seconds",
			Help:      "Statement latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rowkit",
			Subsystem: "store",
			Name:      "rollbacks_total",
			Help:      "Transactions or savepoints rolled back.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.statements, m.duration, m.rollbacks)
	}
	return m
}

// Observe records one statement.
func (m *Metrics) Observe(op string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	m.statements.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// Rollback counts one rollback.
func (m *Metrics) Rollback() {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
}
