package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scoutpulse/scout-engine/internal/platform/resilience"
)

// Class buckets cached payloads by how fast they go stale.
type Class string

const (
	ClassPlayer  Class = "player"
	ClassStats   Class = "stats"
	ClassMarket  Class = "market"
	ClassDerived Class = "derived"
)

var AllClasses = []Class{ClassPlayer, ClassStats, ClassMarket, ClassDerived}

// DefaultTTLs are the freshness windows per class; overridable via config.
func DefaultTTLs() map[Class]time.Duration {
	return map[Class]time.Duration{
		ClassPlayer:  30 * time.Minute,
		ClassStats:   time.Hour,
		ClassMarket:  6 * time.Hour,
		ClassDerived: 24 * time.Hour,
	}
}

type entry struct {
	value     any
	class     Class
	createdAt time.Time
	expiresAt time.Time
}

type classCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// ClassStat is the read-only hit/miss view for one TTL class.
type ClassStat struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// Stats aggregates counters across classes.
type Stats struct {
	Hits     int64               `json:"hits"`
	Misses   int64               `json:"misses"`
	PerClass map[Class]ClassStat `json:"per_class"`
}

// Store is an in-memory key/value cache with a TTL per entry class.
// Expired entries read as misses and are evicted lazily on read or by Sweep;
// the backing map may hold stale records in between.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]entry
	ttls     map[Class]time.Duration
	counters map[Class]*classCounters
	flight   resilience.SingleFlight[any]
	now      func() time.Time
}

func NewStore(ttls map[Class]time.Duration) *Store {
	merged := DefaultTTLs()
	for class, ttl := range ttls {
		if ttl > 0 {
			merged[class] = ttl
		}
	}

	counters := make(map[Class]*classCounters, len(AllClasses))
	for _, class := range AllClasses {
		counters[class] = &classCounters{}
	}

	return &Store{
		entries:  make(map[string]entry),
		ttls:     merged,
		counters: counters,
		now:      time.Now,
	}
}

// TTL reports the configured freshness window for a class.
func (s *Store) TTL(class Class) time.Duration {
	return s.ttls[class]
}

func (s *Store) Get(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		s.count(classForKey(key), false)
		return nil, false
	}
	if !e.expiresAt.After(now) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have refreshed it.
		if cur, still := s.entries[key]; still && !cur.expiresAt.After(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		s.count(e.class, false)
		return nil, false
	}

	s.count(e.class, true)
	return e.value, true
}

func (s *Store) Put(_ context.Context, key string, value any, class Class) {
	if key == "" {
		return
	}

	ttl, ok := s.ttls[class]
	if !ok || ttl <= 0 {
		ttl = s.ttls[ClassDerived]
	}

	now := s.now()
	s.mu.Lock()
	s.entries[key] = entry{
		value:     value,
		class:     class,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	s.mu.Unlock()
}

func (s *Store) Invalidate(_ context.Context, key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *Store) InvalidatePrefix(_ context.Context, prefix string) int {
	if prefix == "" {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// Sweep evicts every expired entry and reports how many were removed.
func (s *Store) Sweep(_ context.Context) int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for key, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Stats() Stats {
	perClass := make(map[Class]ClassStat, len(AllClasses))

	s.mu.RLock()
	entriesByClass := make(map[Class]int, len(AllClasses))
	for _, e := range s.entries {
		entriesByClass[e.class]++
	}
	s.mu.RUnlock()

	var totalHits, totalMisses int64
	for _, class := range AllClasses {
		c := s.counters[class]
		stat := ClassStat{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: entriesByClass[class]}
		perClass[class] = stat
		totalHits += stat.Hits
		totalMisses += stat.Misses
	}

	return Stats{Hits: totalHits, Misses: totalMisses, PerClass: perClass}
}

// GetOrLoad returns the cached value or loads it exactly once across
// concurrent callers for the same key, storing the result under class.
func (s *Store) GetOrLoad(ctx context.Context, key string, class Class, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}

	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, err := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}

		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.Put(ctx, key, loaded, class)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// classForKey attributes misses for absent keys to a class by key prefix
// ("player:...", "stats:...", "market:..."); anything else counts as derived.
func classForKey(key string) Class {
	head, _, ok := strings.Cut(key, ":")
	if !ok {
		return ClassDerived
	}
	for _, class := range AllClasses {
		if head == string(class) {
			return class
		}
	}
	return ClassDerived
}

func (s *Store) count(class Class, hit bool) {
	c, ok := s.counters[class]
	if !ok {
		c = s.counters[ClassDerived]
	}
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}
