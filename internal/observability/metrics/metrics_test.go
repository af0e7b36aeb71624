package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)

	m.ObserveTurn("web", "ok", 120*time.Millisecond)
	m.ObserveTurn("web", "ok", 80*time.Millisecond)
	m.ObserveTurn("whatsapp", "error", time.Second)
	m.ObserveEscalation("user:manager")
	m.ObserveCompletion("openai", "ok", 2*time.Second)
	m.AddTokens("openai", 150)
	m.AddTokens("openai", 0)
	m.ObserveRetrieval(true)
	m.ObserveRetrieval(false)
	m.ObserveWebhookEvent("text")
	m.ObserveOutbound("sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("web", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("whatsapp", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.escalationsTotal.WithLabelValues("user:manager")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.tokensTotal.WithLabelValues("openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retrievalTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retrievalTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookTotal.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboundTotal.WithLabelValues("sent")))
}

func TestChatMetricsNilSafe(t *testing.T) {
	var m *ChatMetrics
	m.ObserveTurn("web", "ok", time.Second)
	m.ObserveEscalation("trigger")
	m.ObserveCompletion("openai", "ok", time.Second)
	m.AddTokens("openai", 10)
	m.ObserveRetrieval(true)
	m.ObserveWebhookEvent("text")
	m.ObserveOutbound("sent")
}
