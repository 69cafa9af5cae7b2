package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/schedule"
)

type ScheduleRunRepository struct {
	mu    sync.RWMutex
	items []schedule.Run
}

func NewScheduleRunRepository() *ScheduleRunRepository {
	return &ScheduleRunRepository{items: make([]schedule.Run, 0, 128)}
}

func (r *ScheduleRunRepository) Insert(_ context.Context, run schedule.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, run)
	return nil
}

func (r *ScheduleRunRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.items[:0]
	removed := 0
	for _, run := range r.items {
		if run.StartedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, run)
	}
	r.items = kept
	return removed, nil
}

func (r *ScheduleRunRepository) ListByJob(_ context.Context, jobName string, limit int) ([]schedule.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedule.Run, 0, 16)
	for _, run := range r.items {
		if run.JobName == jobName {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
