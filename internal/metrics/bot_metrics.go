package metrics

import (
	"time"

	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BotMetrics интерфейс для метрик бота и машины состояний
type BotMetrics interface {
	IncWebhook(source, result string)
	IncTransition(from, to string)
	IncNotification(action, result string)
	IncProofIntake(result string)
	ObserveExternalCall(dependency, operation string, started time.Time, err error)
}

type botMetrics struct {
	log           *logger.Logger
	webhooks      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	proofIntake   *prometheus.CounterVec
	externalCalls *prometheus.HistogramVec
}

// NewBotMetrics регистрирует метрики в переданном реестре
func NewBotMetrics(registry *prometheus.Registry, log *logger.Logger) BotMetrics {
	factory := promauto.With(registry)

	return &botMetrics{
		log: log,
		webhooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_requests_total",
				Help: "Inbound webhook requests by source and result",
			},
			[]string{"source", "result"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscriber_transitions_total",
				Help: "Committed subscriber state transitions",
			},
			[]string{"from", "to"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "State-change notifications by action and result",
			},
			[]string{"action", "result"},
		),
		proofIntake: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proof_intake_total",
				Help: "Manual payment proofs by storage result",
			},
			[]string{"result"},
		),
		externalCalls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_call_duration_seconds",
				Help:    "Latency of outbound calls",
				Buckets: prometheus.ExponentialBuckets(0.025, 2, 10), // 25ms .. ~12.8s
			},
			[]string{"dependency", "operation", "result"},
		),
	}
}

func (m *botMetrics) IncWebhook(source, result string) {
	m.webhooks.WithLabelValues(source, result).Inc()
}

func (m *botMetrics) IncTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *botMetrics) IncNotification(action, result string) {
	m.notifications.WithLabelValues(action, result).Inc()
}

func (m *botMetrics) IncProofIntake(result string) {
	m.proofIntake.WithLabelValues(result).Inc()
}

// ObserveExternalCall записывает длительность вызова; удобно с defer и time.Now()
func (m *botMetrics) ObserveExternalCall(dependency, operation string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.externalCalls.WithLabelValues(dependency, operation, result).Observe(time.Since(started).Seconds())
}

// Nop метрики-заглушка для тестов и утилит
type Nop struct{}

func (Nop) IncWebhook(string, string)                            {}
func (Nop) IncTransition(string, string)                         {}
func (Nop) IncNotification(string, string)                       {}
func (Nop) IncProofIntake(string)                                {}
func (Nop) ObserveExternalCall(string, string, time.Time, error) {}
