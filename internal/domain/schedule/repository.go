package schedule

import (
	"context"
	"time"
)

// RunRepository keeps the execution history of background jobs.
type RunRepository interface {
	Insert(ctx context.Context, run Run) error
	ListByJob(ctx context.Context, jobName string, limit int) ([]Run, error)
	// DeleteBefore prunes runs that started before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
