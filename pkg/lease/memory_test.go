package lease

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreExclusivity(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryStore("owner-a")

	ok, err := a.TryAcquire(ctx, "mtf-batch", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = a.TryAcquire(ctx, "mtf-batch", time.Minute)
	if err != nil || ok {
		t.Fatalf("second acquire should lose: ok=%v err=%v", ok, err)
	}

	held, err := a.IsHeld(ctx, "mtf-batch")
	if err != nil || !held {
		t.Fatalf("IsHeld: held=%v err=%v", held, err)
	}

	if err := a.Release(ctx, "mtf-batch"); err != nil {
		t.Fatalf("release: %v", err)
	}
	held, _ = a.IsHeld(ctx, "mtf-batch")
	if held {
		t.Fatal("lease should be gone after release")
	}
}

func TestMemoryStoreExpiryReclaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("owner-a")

	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	if ok, _ := s.TryAcquire(ctx, "tick-workers", 30*time.Second); !ok {
		t.Fatal("acquire should succeed")
	}

	now = base.Add(10 * time.Second)
	if ok, _ := s.TryAcquire(ctx, "tick-workers", 30*time.Second); ok {
		t.Fatal("acquire before expiry should fail")
	}

	now = base.Add(31 * time.Second)
	if held, _ := s.IsHeld(ctx, "tick-workers"); held {
		t.Fatal("expired lease should not report held")
	}
	if ok, _ := s.TryAcquire(ctx, "tick-workers", 30*time.Second); !ok {
		t.Fatal("expired lease should be reclaimable")
	}
}

func TestMemoryStoreConcurrentAcquireOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("owner-a")

	var wg sync.WaitGroup
	wins := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryAcquire(ctx, "mtf-batch", time.Minute)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	n := 0
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("expected exactly one winner, got %d", n)
	}
}

func TestMemoryStoreClassesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("owner-a")

	if ok, _ := s.TryAcquire(ctx, "mtf-batch", time.Minute); !ok {
		t.Fatal("batch acquire should succeed")
	}
	if ok, _ := s.TryAcquire(ctx, "tick-workers", time.Minute); !ok {
		t.Fatal("unrelated class should acquire independently")
	}
}
