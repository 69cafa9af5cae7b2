package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/alert"
)

type AlertRepository struct {
	mu      sync.Mutex
	items   map[string]alert.Alert
	byDedup map[string][]string

	now func() time.Time
}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		items:   make(map[string]alert.Alert, 256),
		byDedup: make(map[string][]string, 256),
		now:     time.Now,
	}
}

// InsertIfAbsent checks for a live alert with the same dedup key and inserts
// under one lock, so concurrent evaluation passes cannot double-fire.
func (r *AlertRepository) InsertIfAbsent(_ context.Context, a alert.Alert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	key := a.DedupKey()
	for _, id := range r.byDedup[key] {
		if existing, ok := r.items[id]; ok && existing.Live(now) {
			return false, nil
		}
	}

	r.items[a.ID] = a
	r.byDedup[key] = append(r.byDedup[key], a.ID)
	return true, nil
}

func (r *AlertRepository) List(_ context.Context, tenantID string, f alert.Filter) ([]alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]alert.Alert, 0, 32)
	for _, a := range r.items {
		if a.TenantID != tenantID {
			continue
		}
		if f.Rule != "" && a.Rule != f.Rule {
			continue
		}
		if f.UnreadOnly && a.Read {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return alert.MorePressing(out[i].Priority, out[j].Priority)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *AlertRepository) GetByID(_ context.Context, id string) (alert.Alert, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	return a, ok, nil
}

func (r *AlertRepository) MarkRead(_ context.Context, id string) error {
	return r.mutate(id, func(a *alert.Alert) { a.Read = true })
}

func (r *AlertRepository) MarkActed(_ context.Context, id string) error {
	return r.mutate(id, func(a *alert.Alert) { a.Acted = true })
}

func (r *AlertRepository) mutate(id string, apply func(*alert.Alert)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return nil
	}
	apply(&a)
	r.items[id] = a
	return nil
}

func (r *AlertRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, a := range r.items {
		if a.ExpiresAt.After(now) {
			continue
		}
		delete(r.items, id)
		removed++
	}
	if removed > 0 {
		for key, ids := range r.byDedup {
			kept := ids[:0]
			for _, id := range ids {
				if _, ok := r.items[id]; ok {
					kept = append(kept, id)
				}
			}
			if len(kept) == 0 {
				delete(r.byDedup, key)
				continue
			}
			r.byDedup[key] = kept
		}
	}
	return removed, nil
}
