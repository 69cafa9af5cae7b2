package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/scoutpulse/scout-engine/internal/domain/schedule"
	qb "github.com/scoutpulse/scout-engine/internal/platform/querybuilder"
)

type scheduleRunTableModel struct {
	ID         string    `db:"id"`
	JobName    string    `db:"job_name"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	DurationNS int64     `db:"duration_ns"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
}

type ScheduleRunRepository struct {
	db *sqlx.DB
}

func NewScheduleRunRepository(db *sqlx.DB) *ScheduleRunRepository {
	return &ScheduleRunRepository{db: db}
}

func (r *ScheduleRunRepository) Insert(ctx context.Context, run schedule.Run) error {
	query, args, err := qb.InsertInto("job_runs").
		Columns("id", "job_name", "started_at", "finished_at", "duration_ns", "status", "error").
		Values(run.ID, run.JobName, run.StartedAt, run.FinishedAt,
			int64(run.Duration), string(run.Status), run.Error).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert job run query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

func (r *ScheduleRunRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := qb.DeleteFrom("job_runs").
		Where(qb.Expr("started_at < ?", cutoff)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build delete job runs query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete job runs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete job runs rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *ScheduleRunRepository) ListByJob(ctx context.Context, jobName string, limit int) ([]schedule.Run, error) {
	builder := qb.Select("*").From("job_runs").
		Where(qb.Eq("job_name", jobName)).
		OrderBy("started_at DESC")
	if limit > 0 {
		builder.Limit(limit)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list job runs query: %w", err)
	}

	var rows []scheduleRunTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}

	out := make([]schedule.Run, 0, len(rows))
	for _, row := range rows {
		out = append(out, schedule.Run{
			ID:         row.ID,
			JobName:    row.JobName,
			StartedAt:  row.StartedAt,
			FinishedAt: row.FinishedAt,
			Duration:   time.Duration(row.DurationNS),
			Status:     schedule.RunStatus(row.Status),
			Error:      row.Error,
		})
	}
	return out, nil
}
