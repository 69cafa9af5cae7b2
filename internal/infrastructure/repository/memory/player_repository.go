package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/scoutpulse/scout-engine/internal/domain/player"
)

type PlayerRepository struct {
	mu    sync.RWMutex
	items map[int64]player.Snapshot
}

func NewPlayerRepository(snapshots []player.Snapshot) *PlayerRepository {
	items := make(map[int64]player.Snapshot, len(snapshots))
	for _, s := range snapshots {
		items[s.ID] = s
	}
	return &PlayerRepository{items: items}
}

func (r *PlayerRepository) GetByID(_ context.Context, id int64) (player.Snapshot, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[id]
	return s, ok, nil
}

func (r *PlayerRepository) List(_ context.Context) ([]player.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Snapshot, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *PlayerRepository) Upsert(_ context.Context, snapshots []player.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range snapshots {
		if s.ID <= 0 {
			continue
		}
		r.items[s.ID] = s
	}
	return nil
}
