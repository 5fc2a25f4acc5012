// ABOUTME: Prometheus counters for admission decisions and verify failures
// ABOUTME: The verify reason is only ever observed here and in debug logs

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records gate activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	decisions      *prometheus.CounterVec
	verifyFailures *prometheus.CounterVec
}

// NewMetrics creates gate metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockdeck",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Admission decisions by path class and action.",
		}, []string{"class", "action"}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockdeck",
			Subsystem: "gate",
			Name:      "verify_failures_total",
			Help:      "Credential verification failures by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.verifyFailures)
	}
	return m
}

func (m *Metrics) observeDecision(class PathClass, action Action) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(class.String(), action.String()).Inc()
}

func (m *Metrics) observeVerifyFailure(reason VerifyReason) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = ReasonMalformed
	}
	m.verifyFailures.WithLabelValues(string(reason)).Inc()
}
