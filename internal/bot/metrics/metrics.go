// Package metrics exposes Prometheus instrumentation for the NLU request
// broker and the message pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric families are package-level so repeated construction (several App
// instances in one process, as tests do) never double-registers.
var (
	nluDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dealerbot",
		Subsystem: "nlu",
		Name:      "requests_dispatched_total",
		Help:      "Provider requests dispatched successfully.",
	})
	nluRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dealerbot",
		Subsystem: "nlu",
		Name:      "requests_rejected_total",
		Help:      "Provider requests rejected, by reason.",
	}, []string{"reason"})
	nluQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dealerbot",
		Subsystem: "nlu",
		Name:      "queue_depth",
		Help:      "Requests currently waiting in the broker queue.",
	})
	nluMinuteUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dealerbot",
		Subsystem: "nlu",
		Name:      "quota_minute_used",
		Help:      "Requests dispatched in the current minute window.",
	})
	nluDayUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dealerbot",
		Subsystem: "nlu",
		Name:      "quota_day_used",
		Help:      "Requests dispatched in the current UTC day.",
	})

	engineTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dealerbot",
		Subsystem: "engine",
		Name:      "turns_total",
		Help:      "Conversation turns handled, by flow.",
	}, []string{"flow"})
	engineTurnErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dealerbot",
		Subsystem: "engine",
		Name:      "turn_errors_total",
		Help:      "Turns that failed with an engine error.",
	})
)

// BrokerMetrics implements nlu.Observer.
type BrokerMetrics struct{}

// NewBrokerMetrics returns the broker metrics facade.
func NewBrokerMetrics() *BrokerMetrics {
	return &BrokerMetrics{}
}

func (m *BrokerMetrics) RequestDispatched()            { nluDispatched.Inc() }
func (m *BrokerMetrics) RequestRejected(reason string) { nluRejected.WithLabelValues(reason).Inc() }
func (m *BrokerMetrics) QueueDepth(depth int)          { nluQueueDepth.Set(float64(depth)) }

func (m *BrokerMetrics) QuotaUsage(minuteUsed, dayUsed int) {
	nluMinuteUsed.Set(float64(minuteUsed))
	nluDayUsed.Set(float64(dayUsed))
}

// TurnMetrics counts handled conversation turns.
type TurnMetrics struct{}

// NewTurnMetrics returns the turn metrics facade.
func NewTurnMetrics() *TurnMetrics {
	return &TurnMetrics{}
}

// TurnHandled records one completed turn in the given flow.
func (m *TurnMetrics) TurnHandled(flow string) { engineTurns.WithLabelValues(flow).Inc() }

// TurnFailed records one failed turn.
func (m *TurnMetrics) TurnFailed() { engineTurnErrors.Inc() }
