package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics exposes counters and histograms for chat turns and channel traffic.
type ChatMetrics struct {
	turnsTotal        *prometheus.CounterVec
	turnLatency       *prometheus.HistogramVec
	escalationsTotal  *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec
	tokensTotal       *prometheus.CounterVec
	retrievalTotal    *prometheus.CounterVec
	webhookTotal      *prometheus.CounterVec
	outboundTotal     *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns by channel and outcome",
		}, []string{"channel", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "support",
			Subsystem: "chat",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of a chat turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "chat",
			Name:      "escalations_total",
			Help:      "Escalations to a human agent by trigger",
		}, []string{"trigger"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "support",
			Subsystem: "llm",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"provider", "outcome"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by completions",
		}, []string{"provider"}),
		retrievalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "knowledge",
			Name:      "retrievals_total",
			Help:      "Knowledge base lookups by result",
		}, []string{"result"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "whatsapp",
			Name:      "webhook_events_total",
			Help:      "Inbound WhatsApp webhook events by kind",
		}, []string{"kind"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Outbound WhatsApp sends by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.escalationsTotal, m.completionLatency,
		m.tokensTotal, m.retrievalTotal, m.webhookTotal, m.outboundTotal)
	return m
}

func (m *ChatMetrics) ObserveTurn(channel, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(channel, outcome).Inc()
	m.turnLatency.WithLabelValues(channel).Observe(d.Seconds())
}

func (m *ChatMetrics) ObserveEscalation(trigger string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(trigger).Inc()
}

func (m *ChatMetrics) ObserveCompletion(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.completionLatency.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

func (m *ChatMetrics) AddTokens(provider string, tokens int) {
	if m == nil || tokens <= 0 {
		return
	}
	m.tokensTotal.WithLabelValues(provider).Add(float64(tokens))
}

func (m *ChatMetrics) ObserveRetrieval(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.retrievalTotal.WithLabelValues(result).Inc()
}

func (m *ChatMetrics) ObserveWebhookEvent(kind string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(kind).Inc()
}

func (m *ChatMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}
