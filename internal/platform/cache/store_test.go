package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestStore(at time.Time) (*Store, *time.Time) {
	now := at
	s := NewStore(nil)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_ServesUntilClassTTLThenMisses(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s, now := newTestStore(start)

	ctx := context.Background()
	s.Put(ctx, "stats:42", "payload", ClassStats)

	*now = start.Add(3599 * time.Second)
	if v, ok := s.Get(ctx, "stats:42"); !ok || v != "payload" {
		t.Fatalf("expected hit at t=3599s, got ok=%v v=%v", ok, v)
	}

	*now = start.Add(3601 * time.Second)
	if _, ok := s.Get(ctx, "stats:42"); ok {
		t.Fatal("expected miss at t=3601s")
	}

	stats := s.Stats()
	if got := stats.PerClass[ClassStats]; got.Hits != 1 || got.Misses != 1 {
		t.Fatalf("stats counters = %+v, want 1 hit 1 miss", got)
	}
}

func TestStore_SweepEvictsOnlyExpired(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s, now := newTestStore(start)

	ctx := context.Background()
	s.Put(ctx, "player:1", 1, ClassPlayer)  // 30m TTL
	s.Put(ctx, "market:gk", 2, ClassMarket) // 6h TTL

	*now = start.Add(45 * time.Minute)
	if removed := s.Sweep(ctx); removed != 1 {
		t.Fatalf("sweep removed %d entries, want 1", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("store holds %d entries after sweep, want 1", s.Len())
	}
	if _, ok := s.Get(ctx, "market:gk"); !ok {
		t.Fatal("market entry should survive the sweep")
	}
}

func TestStore_InvalidatePrefix(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	ctx := context.Background()

	s.Put(ctx, "player:1", 1, ClassPlayer)
	s.Put(ctx, "player:2", 2, ClassPlayer)
	s.Put(ctx, "stats:1", 3, ClassStats)

	if removed := s.InvalidatePrefix(ctx, "player:"); removed != 2 {
		t.Fatalf("removed %d entries, want 2", removed)
	}
	if _, ok := s.Get(ctx, "stats:1"); !ok {
		t.Fatal("stats entry should remain")
	}
}

func TestStore_GetOrLoad_SingleLoaderAcrossConcurrentCallers(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	var calls atomic.Int32

	loader := func(context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := s.GetOrLoad(context.Background(), "player:9", ClassPlayer, loader)
			if err != nil {
				errCh <- err
				return
			}
			if got, _ := v.(string); got != "value" {
				errCh <- errors.New("unexpected loaded value")
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_PutOverwritesWithinKey(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	ctx := context.Background()

	s.Put(ctx, "player:7", "old", ClassPlayer)
	s.Put(ctx, "player:7", "new", ClassPlayer)

	if v, ok := s.Get(ctx, "player:7"); !ok || v != "new" {
		t.Fatalf("expected last write to win, got ok=%v v=%v", ok, v)
	}
}
