package lease

import (
	"context"
	"sync"
	"time"
)

type memLease struct {
	owner     string
	expiresAt time.Time
}

// MemoryStore is an in-process lease store with the same expiry semantics as
// the Redis one. Useful for single-node deployments and tests.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]memLease
	owner  string
	now    func() time.Time
}

// NewMemoryStore creates an in-memory lease store.
func NewMemoryStore(owner string) *MemoryStore {
	return &MemoryStore{
		leases: make(map[string]memLease),
		owner:  owner,
		now:    time.Now,
	}
}

func (s *MemoryStore) TryAcquire(_ context.Context, workflowClass string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[workflowClass]
	if ok && s.now().Before(cur.expiresAt) {
		return false, nil
	}
	s.leases[workflowClass] = memLease{owner: s.owner, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, workflowClass string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[workflowClass]
	if ok && cur.owner == s.owner {
		delete(s.leases, workflowClass)
	}
	return nil
}

func (s *MemoryStore) IsHeld(_ context.Context, workflowClass string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.leases[workflowClass]
	if !ok {
		return false, nil
	}
	if !s.now().Before(cur.expiresAt) {
		delete(s.leases, workflowClass)
		return false, nil
	}
	return true, nil
}
