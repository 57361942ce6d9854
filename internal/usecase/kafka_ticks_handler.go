package usecase

import (
	"context"
	"encoding/json"
	"time"

	domrepo "QuantPulse/internal/domain/repository"
	mid "QuantPulse/internal/middleware"

	"QuantPulse/internal/domain/models"
	pkgkafka "QuantPulse/pkg/kafka"
)

// KafkaTicksHandler consumes brokered quote ticks and feeds them through the
// same validating pipeline the WebSocket path uses.
type KafkaTicksHandler struct {
	topic   string
	pipe    *mid.TickPipeline
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, pipe *mid.TickPipeline, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, b, a, v}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		B      float64 `json:"b"`
		A      float64 `json:"a"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	return h.pipe.Process(ctx, &models.Tick{
		Symbol:    m.Symbol,
		Timestamp: m.T,
		Bid:       m.B,
		Ask:       m.A,
		Volume:    m.V,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
