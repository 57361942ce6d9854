// Package lease implements TTL-bounded exclusivity leases keyed by workflow
// class. A lease that is never released is reclaimed by expiry.
package lease

import (
	"context"
	"fmt"
	"time"

	"QuantPulse/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when the caller still owns it, so a
// holder whose lease expired and was re-acquired cannot release the new
// holder's lease.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisStore is a Redis-backed lease store. Each store instance carries its
// own owner token; acquire is SET NX PX and release is compare-owner delete.
type RedisStore struct {
	client    *redis.Client
	logger    *logger.Logger
	owner     string
	keyPrefix string
	script    *redis.Script
}

// Option configures RedisStore.
type Option func(*RedisStore)

// WithKeyPrefix sets a custom key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisStore creates a lease store with a fresh owner token.
func NewRedisStore(client *redis.Client, lgr *logger.Logger, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:    client,
		logger:    lgr,
		owner:     uuid.NewString(),
		keyPrefix: "quantpulse:lease",
		script:    redis.NewScript(releaseScript),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryAcquire attempts to take the lease for a workflow class. Returns false
// without error when another owner currently holds it.
func (s *RedisStore) TryAcquire(ctx context.Context, workflowClass string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(workflowClass), s.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lease acquire %s: %w", workflowClass, err)
	}
	if ok {
		s.logger.Debug("lease acquired",
			logger.String("class", workflowClass),
			logger.Duration("ttl_ms", ttl))
	}
	return ok, nil
}

// Release gives up the lease if this store still owns it. Releasing a lease
// held by someone else (or already expired) is a no-op.
func (s *RedisStore) Release(ctx context.Context, workflowClass string) error {
	if err := s.script.Run(ctx, s.client, []string{s.key(workflowClass)}, s.owner).Err(); err != nil {
		return fmt.Errorf("lease release %s: %w", workflowClass, err)
	}
	return nil
}

// IsHeld reports whether any owner currently holds the class lease.
func (s *RedisStore) IsHeld(ctx context.Context, workflowClass string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(workflowClass)).Result()
	if err != nil {
		return false, fmt.Errorf("lease check %s: %w", workflowClass, err)
	}
	return n > 0, nil
}

func (s *RedisStore) key(class string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, class)
}
