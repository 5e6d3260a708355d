// Package metrics exposes Prometheus counters for the registration workflow.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for notification outcomes.
const (
	ResultSent    = "sent"
	ResultQueued  = "queued"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New creates collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "centre",
			Name:      "registration_transitions_total",
			Help:      "Registration workflow transitions by target status.",
		}, []string{"to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "centre",
			Name:      "registration_errors_total",
			Help:      "Workflow operations refused, by operation and error kind.",
		}, []string{"operation", "kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "centre",
			Name:      "notifications_total",
			Help:      "Notification dispatch outcomes by email type.",
		}, []string{"email_type", "result"}),
	}
	reg.MustRegister(m.transitions, m.rejections, m.notifications,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Transition counts a committed status change.
func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}

// Refused counts an operation that returned a domain error.
func (m *Metrics) Refused(operation, kind string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(operation, kind).Inc()
}

// Notification counts a dispatch outcome.
func (m *Metrics) Notification(emailType, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(emailType, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
