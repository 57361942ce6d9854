package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"QuantPulse/internal/arbiter"
	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/internal/handler/api"
	mid "QuantPulse/internal/middleware"
	internalrepo "QuantPulse/internal/repository"
	icache "QuantPulse/internal/service/cache"
	"QuantPulse/internal/service/stream"
	"QuantPulse/internal/strategy"
	"QuantPulse/internal/usecase"
	pkgch "QuantPulse/pkg/clickhouse"
	"QuantPulse/pkg/config"
	pkgkafka "QuantPulse/pkg/kafka"
	"QuantPulse/pkg/lease"
	"QuantPulse/pkg/logger"
	"QuantPulse/pkg/metrics"
	"QuantPulse/pkg/queue"
	"QuantPulse/pkg/server"
)

// ProvideLogger creates the root application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRegistry builds the validated policy/threshold registry. Any invalid
// entry fails startup.
func ProvideRegistry(cfg *config.Config) (*strategy.Registry, error) {
	policies := make([]strategy.PolicySpec, 0, len(cfg.Strategy.Policies))
	for _, p := range cfg.Strategy.Policies {
		policies = append(policies, strategy.PolicySpec(p))
	}
	thresholds := make([]strategy.ThresholdSpec, 0, len(cfg.Strategy.Thresholds))
	for _, t := range cfg.Strategy.Thresholds {
		thresholds = append(thresholds, strategy.ThresholdSpec(t))
	}
	instruments := make([]models.Instrument, 0, len(cfg.Strategy.Instruments))
	for _, ins := range cfg.Strategy.Instruments {
		instruments = append(instruments, models.Instrument(ins))
	}
	return strategy.NewRegistry(policies, thresholds, instruments)
}

// ProvideConfigRegistry wraps the registry with TTL memoization for executor
// hot paths.
func ProvideConfigRegistry(reg *strategy.Registry) domrepo.ConfigRegistry {
	return strategy.NewCachedRegistry(reg, 5*time.Minute)
}

// ProvideRedisClient creates the shared Redis client.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the candle
// schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append(
		[]string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database)},
		internalrepo.CandleSchema(candleTable(cfg))...,
	)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideCandleStore creates the ClickHouse candle store.
func ProvideCandleStore(chClient *pkgch.Client, cfg *config.Config) *internalrepo.ClickHouseCandleStore {
	return internalrepo.NewClickHouseCandleStore(chClient.DB(), candleTable(cfg))
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalCache creates the Redis-backed latest-signal cache.
func ProvideSignalCache(cfg *config.Config) icache.BytesCache {
	return icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideSignalSink creates the Kafka signal sink.
func ProvideSignalSink(producer *pkgkafka.Producer, signals icache.BytesCache, cfg *config.Config) domrepo.SignalSink {
	return internalrepo.NewKafkaSignalSink(producer, cfg.Kafka.SignalsTopic, signals)
}

// ProvideLeaseStore creates the Redis lease store.
func ProvideLeaseStore(client *redis.Client, lgr *logger.Logger) domrepo.LeaseStore {
	return lease.NewRedisStore(client, lgr)
}

// ProvideQueue creates the priority job queue.
func ProvideQueue(lgr *logger.Logger, client *redis.Client, cfg *config.Config) *queue.RedisQueue {
	return queue.NewRedisQueue(lgr, &queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		DedupeTTL:  cfg.Queue.DedupeTTL,
	}, client)
}

// ProvideJobQueue adapts the Redis queue to the domain dispatch contract.
func ProvideJobQueue(q *queue.RedisQueue) domrepo.JobQueue {
	return internalrepo.NewQueueDispatcher(q)
}

// ProvideExecutor creates the pipeline executor.
func ProvideExecutor(
	lgr *logger.Logger,
	store *internalrepo.ClickHouseCandleStore,
	registry domrepo.ConfigRegistry,
	sink domrepo.SignalSink,
	leases domrepo.LeaseStore,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.PipelineExecutor {
	return usecase.NewPipelineExecutor(lgr, store, registry, sink, leases, m, &usecase.ExecutorConfig{
		BackfillWindow: cfg.Pipeline.BackfillWindow,
		FetchRPS:       cfg.Pipeline.FetchRPS,
		LeaseTTL:       cfg.Scheduler.LeaseTTL,
		BatchClass:     cfg.Scheduler.BatchClass,
	})
}

// ProvidePipelineJobHandler creates the queue handler running pipeline jobs.
func ProvidePipelineJobHandler(lgr *logger.Logger, executor *usecase.PipelineExecutor, m domrepo.Metrics) *usecase.PipelineJobHandler {
	return usecase.NewPipelineJobHandler(lgr, executor, m, internalrepo.PipelineJobType)
}

// ProvideArbiter creates the conflict arbiter over the queue's low lane.
func ProvideArbiter(lgr *logger.Logger, leases domrepo.LeaseStore, q *queue.RedisQueue, m domrepo.Metrics, cfg *config.Config) *arbiter.Arbiter {
	return arbiter.New(lgr, leases, q, m, &arbiter.Config{
		BatchClass:    cfg.Scheduler.BatchClass,
		RealtimeClass: cfg.Scheduler.RealtimeClass,
		Cadence:       cfg.Scheduler.Cadence,
	})
}

// ProvideTickIngestor creates the candle-folding ingestor over every known
// timeframe.
func ProvideTickIngestor(lgr *logger.Logger, store *internalrepo.ClickHouseCandleStore, m domrepo.Metrics) *usecase.TickIngestor {
	return usecase.NewTickIngestor(lgr, store, m, domrepo.Known())
}

// ProvideTickCollector wires stream -> pipeline -> ingestor.
func ProvideTickCollector(lgr *logger.Logger, ingestor *usecase.TickIngestor, m domrepo.Metrics, cfg *config.Config) *usecase.TickCollector {
	pipe := mid.NewTickPipeline(ingestor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	s := stream.New(lgr,
		cfg.Stream.APIKey,
		cfg.Stream.URL,
		instrumentKeys(cfg),
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
	return usecase.NewTickCollector(lgr, s, pipe, m)
}

// ProvideKafkaConsumer creates a Kafka consumer when a ticks topic is
// configured; nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Kafka.TicksTopic == "" {
		return nil, nil
	}
	return pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
}

// ProvideKafkaTicksHandler feeds brokered ticks through the same pipeline as
// the WebSocket path.
func ProvideKafkaTicksHandler(ingestor *usecase.TickIngestor, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	pipe := mid.NewTickPipeline(ingestor, m, mid.WithMaxRPS(50), mid.WithBufferSize(2000))
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, pipe, m)
}

// ProvideHTTPHandler creates the operational API handler.
func ProvideHTTPHandler(lgr *logger.Logger, jq domrepo.JobQueue, reg *strategy.Registry, signals icache.BytesCache, source domrepo.MarketDataSource) *api.PipelineEchoHandler {
	return api.NewPipelineEchoHandler(lgr, jq, reg, signals, source)
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	collector *usecase.TickCollector,
	q *queue.RedisQueue,
	jobHandler *usecase.PipelineJobHandler,
	arb *arbiter.Arbiter,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	httpHandler *api.PipelineEchoHandler,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, lgr, collector, q, jobHandler, arb, consumer, kh, httpHandler, chClient)
}

func candleTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + ".candles"
}

func instrumentKeys(cfg *config.Config) []string {
	keys := make([]string, 0, len(cfg.Strategy.Instruments))
	for _, ins := range cfg.Strategy.Instruments {
		if ins.Active {
			keys = append(keys, ins.Ticker+"@"+ins.Venue)
		}
	}
	return keys
}
