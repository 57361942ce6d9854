package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/internal/service/cache"
	pkgkafka "QuantPulse/pkg/kafka"
)

// latestSignalTTL bounds how long a cached "latest signal" may serve reads
// after emission stops.
const latestSignalTTL = 24 * time.Hour

// KafkaSignalSink publishes aggregated signals to a Kafka topic keyed by
// symbol and keeps the latest signal per symbol in a cache for API reads.
// Cache failures are swallowed: the broker is the contract, the cache is not.
type KafkaSignalSink struct {
	producer *pkgkafka.Producer
	topic    string
	cache    cache.BytesCache
}

// NewKafkaSignalSink creates a signal sink. The cache may be nil.
func NewKafkaSignalSink(producer *pkgkafka.Producer, topic string, c cache.BytesCache) *KafkaSignalSink {
	return &KafkaSignalSink{producer: producer, topic: topic, cache: c}
}

func (s *KafkaSignalSink) Emit(ctx context.Context, sig *models.AggregatedSignal) error {
	if err := s.producer.Publish(ctx, s.topic, []byte(sig.Symbol), sig); err != nil {
		return &models.EmissionError{Symbol: sig.Symbol, Err: err}
	}
	if s.cache != nil {
		if b, err := json.Marshal(sig); err == nil {
			_ = s.cache.SetBytes(LatestSignalKey(sig.Symbol), b, latestSignalTTL)
		}
	}
	return nil
}

// LatestSignalKey is the cache key holding the last emitted signal for a
// symbol.
func LatestSignalKey(symbol string) string {
	return fmt.Sprintf("quantpulse:signal:latest:%s", symbol)
}

// LatestSignal reads the last emitted signal for a symbol from the cache, or
// (nil, false) when none is cached.
func LatestSignal(c cache.BytesCache, symbol string) (*models.AggregatedSignal, bool, error) {
	b, ok, err := c.GetBytes(LatestSignalKey(symbol))
	if err != nil || !ok {
		return nil, false, err
	}
	var sig models.AggregatedSignal
	if err := json.Unmarshal(b, &sig); err != nil {
		return nil, false, fmt.Errorf("decode cached signal: %w", err)
	}
	return &sig, true, nil
}

var _ domrepo.SignalSink = (*KafkaSignalSink)(nil)
