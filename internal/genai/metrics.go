package genai

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels recorded by Metrics.
const (
	outcomeSuccess   = "success"
	outcomeExhausted = "rate_limited"
	outcomeFailed    = "failed"
	outcomeMalformed = "malformed"
	outcomeCancelled = "cancelled"
	metricsNamespace = "parabola"
	metricsSubsystem = "genai"
)

// Metrics counts requests issued by a Client. A nil *Metrics records nothing.
type Metrics struct {
	attempts prometheus.Counter
	retries  prometheus.Counter
	outcomes *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "attempts_total",
			Help:      "Total number of text-generation requests sent, including retries.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "retries_total",
			Help:      "Total number of retries after a rate-limit response.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "outcomes_total",
			Help:      "Text-generation calls by final outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.retries, m.outcomes)
	}
	return m
}

func (m *Metrics) attempt() {
	if m != nil {
		m.attempts.Inc()
	}
}

func (m *Metrics) retry() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *Metrics) outcome(label string) {
	if m != nil {
		m.outcomes.WithLabelValues(label).Inc()
	}
}
