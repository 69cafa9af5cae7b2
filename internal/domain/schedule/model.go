package schedule

import "time"

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// Job describes one recurring background task. Exactly one of Interval or
// CronSpec is set; CronSpec wins when both are present.
type Job struct {
	Name     string
	Interval time.Duration
	CronSpec string
	Enabled  bool
}

// Run is the persisted record of a single job execution.
type Run struct {
	ID         string        `json:"id" db:"id"`
	JobName    string        `json:"job_name" db:"job_name"`
	StartedAt  time.Time     `json:"started_at" db:"started_at"`
	FinishedAt time.Time     `json:"finished_at" db:"finished_at"`
	Duration   time.Duration `json:"duration" db:"duration_ns"`
	Status     RunStatus     `json:"status" db:"status"`
	Error      string        `json:"error,omitempty" db:"error"`
}

// Status is the live view of one scheduled job.
type Status struct {
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	LastRunAt time.Time `json:"last_run_at,omitzero"`
	NextRunAt time.Time `json:"next_run_at,omitzero"`
	LastState RunStatus `json:"last_state,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	RunCount  int64     `json:"run_count"`
	FailCount int64     `json:"fail_count"`
}
