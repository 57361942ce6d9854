package usecase

import (
	"context"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	mid "QuantPulse/internal/middleware"
	"QuantPulse/internal/service/stream"
	"QuantPulse/pkg/logger"
)

// TickCollector drives the quote feed: connect, subscribe, consume, and
// reconnect on read failure. Ticks travel through the validating pipeline
// into the ingestor.
type TickCollector struct {
	logger  *logger.Logger
	stream  stream.TickStream
	pipe    *mid.TickPipeline
	metrics domrepo.Metrics
}

// NewTickCollector creates a collector.
func NewTickCollector(lgr *logger.Logger, s stream.TickStream, pipe *mid.TickPipeline, metrics domrepo.Metrics) *TickCollector {
	return &TickCollector{
		logger:  lgr.With("collector"),
		stream:  s,
		pipe:    pipe,
		metrics: metrics,
	}
}

// IsConnected reports feed connectivity.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and launches the consume loop.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				c.logger.Warn("stream error, reconnecting", logger.Error(err))
				if rerr := c.stream.Reconnect(ctx); rerr != nil {
					if ctx.Err() != nil {
						return
					}
					c.logger.Error("reconnect failed", logger.Error(rerr))
					continue
				}
				tickCh, errCh = c.stream.Read(ctx)
			}
		case t := <-tickCh:
			if t == nil {
				continue
			}
			_ = c.pipe.Process(ctx, t)
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
