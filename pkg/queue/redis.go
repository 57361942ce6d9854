package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"QuantPulse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ErrDuplicate is returned by Enqueue when the dedupe key already admitted an
// equivalent job within its window.
var ErrDuplicate = errors.New("queue: duplicate dedupe key")

// ErrNotFound is returned by Status/Result for unknown job ids.
var ErrNotFound = errors.New("queue: job not found")

// Config contains the configuration for the queue.
type Config struct {
	Workers    int           // number of worker goroutines
	RetryLimit int           // max retries for transient failures
	RetryDelay time.Duration // delay between retries
	DedupeTTL  time.Duration // window during which a dedupe key collapses dispatches
	StatusTTL  time.Duration // retention of per-job status/result records
}

// RedisQueue is a two-lane priority queue on Redis lists. The high lane is
// always drained first; the low lane can be suspended while a high-priority
// workflow class holds exclusivity.
type RedisQueue struct {
	logger    *logger.Logger
	config    *Config
	client    *redis.Client
	handlers  map[string]Handler
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	stopCh    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
	lowPaused atomic.Bool
}

// Option configures RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix sets a custom key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a new Redis-backed priority queue.
func NewRedisQueue(lgr *logger.Logger, config *Config, client *redis.Client, opts ...Option) *RedisQueue {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	if config.DedupeTTL <= 0 {
		config.DedupeTTL = 5 * time.Minute
	}
	if config.StatusTTL <= 0 {
		config.StatusTTL = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		handlers:  make(map[string]Handler),
		stopCh:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		keyPrefix: "quantpulse:queue",
	}

	for _, opt := range opts {
		opt(rq)
	}

	return rq
}

// RegisterHandler registers a handler for its job type.
func (r *RedisQueue) RegisterHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Type()]; exists {
		r.logger.Warn("handler already registered", logger.String("handler", h.Name()))
		return
	}

	r.handlers[h.Type()] = h
	r.logger.Info("handler registered",
		logger.String("handler", h.Name()),
		logger.String("type", h.Type()))
}

// Start starts the queue workers and the retry processor.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.isRunning = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryProcessor()

	r.logger.Info("queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop gracefully stops the queue.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	close(r.stopCh)
	r.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		r.logger.Info("queue stopped gracefully")
		return nil
	}
}

// PauseLow suspends consumption of the low-priority lane. Jobs already
// enqueued stay queued; workers simply stop being handed them.
func (r *RedisQueue) PauseLow() { r.lowPaused.Store(true) }

// ResumeLow resumes consumption of the low-priority lane.
func (r *RedisQueue) ResumeLow() { r.lowPaused.Store(false) }

// LowPaused reports whether the low-priority lane is suspended.
func (r *RedisQueue) LowPaused() bool { return r.lowPaused.Load() }

// Enqueue admits a job. Returns ErrDuplicate when the job's dedupe key has
// already admitted one within the dedupe window.
func (r *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	r.mu.RLock()
	running := r.isRunning
	r.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}

	if job.DedupeKey != "" {
		ok, err := r.client.SetNX(ctx, r.dedupeKey(job.DedupeKey), job.ID, r.config.DedupeTTL).Result()
		if err != nil {
			return fmt.Errorf("dedupe setnx: %w", err)
		}
		if !ok {
			return ErrDuplicate
		}
	}

	job.EnqueuedAt = time.Now()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.jobKey(job.ID), "status", string(StatusQueued), "type", job.Type)
	pipe.Expire(ctx, r.jobKey(job.ID), r.config.StatusTTL)
	pipe.LPush(ctx, r.laneKey(job.Priority), data)
	if _, err := pipe.Exec(ctx); err != nil {
		// the job was never admitted; release the dedupe claim so a retry of
		// the same dispatch is not dropped as a duplicate
		if job.DedupeKey != "" {
			if delErr := r.client.Del(context.Background(), r.dedupeKey(job.DedupeKey)).Err(); delErr != nil {
				r.logger.Error("dedupe release", logger.String("key", job.DedupeKey), logger.Error(delErr))
			}
		}
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Status returns the lifecycle state of a job.
func (r *RedisQueue) Status(ctx context.Context, jobID string) (Status, error) {
	s, err := r.client.HGet(ctx, r.jobKey(jobID), "status").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("status: %w", err)
	}
	return Status(s), nil
}

// Result returns the stored result JSON of a finished job.
func (r *RedisQueue) Result(ctx context.Context, jobID string) (json.RawMessage, error) {
	res, err := r.client.HGet(ctx, r.jobKey(jobID), "result").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("result: %w", err)
	}
	return json.RawMessage(res), nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.logger.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-r.stopCh:
			r.logger.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case <-r.ctx.Done():
			return
		default:
			r.processNext()
		}
	}
}

func (r *RedisQueue) processNext() {
	ctx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
	defer cancel()

	// BRPOP over both lanes keeps high strictly ahead of low; while the low
	// lane is paused it is simply not offered.
	keys := []string{r.laneKey(PriorityHigh)}
	if !r.lowPaused.Load() {
		keys = append(keys, r.laneKey(PriorityLow))
	}

	result, err := r.client.BRPop(ctx, time.Second, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Error("brpop error", logger.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(result) < 2 {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		r.logger.Error("unmarshal job", logger.Error(err))
		return
	}

	r.runJob(&job)
}

func (r *RedisQueue) runJob(job *Job) {
	r.mu.RLock()
	h, exists := r.handlers[job.Type]
	r.mu.RUnlock()
	if !exists {
		r.logger.Error("no handler for job",
			logger.String("type", job.Type),
			logger.String("id", job.ID))
		r.finishJob(job, StatusFailed, nil, fmt.Sprintf("no handler for type %s", job.Type))
		return
	}

	r.setStatus(job.ID, StatusRunning)

	ctx := r.ctx
	cancel := func() {}
	if job.Timeout > 0 {
		ctx, cancel = context.WithTimeout(r.ctx, job.Timeout)
	}
	start := time.Now()
	res, err := h.Handle(ctx, job.Payload)
	cancel()
	elapsed := time.Since(start)

	if err == nil {
		r.finishJob(job, StatusDone, res, "")
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		// a timed-out job is failed, not retried; its lease is reclaimed by expiry
		r.logger.Error("job timed out",
			logger.String("id", job.ID),
			logger.String("handler", h.Name()),
			logger.Duration("elapsed_ms", elapsed))
		r.finishJob(job, StatusFailed, res, "timeout")
		return
	}
	if errors.Is(err, context.Canceled) {
		// shutdown interrupted the run; put the job back so it is picked up
		// again instead of leaving its status stuck at running
		r.logger.Warn("job cancelled, requeueing", logger.String("id", job.ID))
		r.requeue(job)
		return
	}

	r.logger.Error("job failed",
		logger.String("id", job.ID),
		logger.String("handler", h.Name()),
		logger.Int("attempt", job.Attempts+1),
		logger.Error(err))

	if job.Attempts < r.config.RetryLimit {
		job.Attempts++
		r.scheduleRetry(job, time.Now().Add(r.config.RetryDelay))
		return
	}
	r.finishJob(job, StatusFailed, res, err.Error())
	r.moveToDeadLetter(job)
}

// requeue returns an interrupted job to the front of its lane (BRPOP serves
// the list tail first) and resets its status to queued.
func (r *RedisQueue) requeue(job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		r.logger.Error("requeue marshal", logger.String("id", job.ID), logger.Error(err))
		r.finishJob(job, StatusFailed, nil, "cancelled")
		return
	}
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.jobKey(job.ID), "status", string(StatusQueued))
	pipe.Expire(ctx, r.jobKey(job.ID), r.config.StatusTTL)
	pipe.RPush(ctx, r.laneKey(job.Priority), data)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("requeue", logger.String("id", job.ID), logger.Error(err))
	}
}

func (r *RedisQueue) setStatus(jobID string, s Status) {
	if err := r.client.HSet(context.Background(), r.jobKey(jobID), "status", string(s)).Err(); err != nil {
		r.logger.Error("set status", logger.String("id", jobID), logger.Error(err))
	}
}

func (r *RedisQueue) finishJob(job *Job, s Status, result interface{}, errMsg string) {
	fields := []interface{}{"status", string(s)}
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			fields = append(fields, "result", string(b))
		}
	}
	if errMsg != "" {
		fields = append(fields, "error", errMsg)
	}
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.jobKey(job.ID), fields...)
	pipe.Expire(ctx, r.jobKey(job.ID), r.config.StatusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("finish job", logger.String("id", job.ID), logger.Error(err))
	}
}

func (r *RedisQueue) scheduleRetry(job *Job, retryTime time.Time) {
	data, err := json.Marshal(job)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(retryTime.Unix()),
		Member: data,
	}).Err()
	if err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) moveToDeadLetter(job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		r.logger.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.deadLetterKey(), data).Err(); err != nil {
		r.logger.Error("lpush dlq", logger.Error(err))
	}
}

func (r *RedisQueue) retryProcessor() {
	defer r.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.drainRetries()
		}
	}
}

func (r *RedisQueue) drainRetries() {
	now := float64(time.Now().Unix())

	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatFloat(now, 'f', 0, 64),
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Error("fetch retries", logger.Error(err))
		return
	}

	for _, data := range due {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			_ = r.client.ZRem(r.ctx, r.retryKey(), data).Err()
			continue
		}

		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey(), data)
		pipe.LPush(r.ctx, r.laneKey(job.Priority), data)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("requeue retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) laneKey(p Priority) string {
	if p == PriorityHigh {
		return fmt.Sprintf("%s:high", r.keyPrefix)
	}
	return fmt.Sprintf("%s:low", r.keyPrefix)
}

func (r *RedisQueue) dedupeKey(key string) string {
	return fmt.Sprintf("%s:dedupe:%s", r.keyPrefix, key)
}

func (r *RedisQueue) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", r.keyPrefix, id)
}

func (r *RedisQueue) retryKey() string {
	return fmt.Sprintf("%s:retry", r.keyPrefix)
}

func (r *RedisQueue) deadLetterKey() string {
	return fmt.Sprintf("%s:dlq", r.keyPrefix)
}
