package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/scoutpulse/scout-engine/internal/domain/schedule"
	idgen "github.com/scoutpulse/scout-engine/internal/platform/id"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
)

// JobFunc is one background task body. The scheduler owns retries-by-cadence;
// the body just does the work once.
type JobFunc func(ctx context.Context) error

type jobState struct {
	job      schedule.Job
	cronSpec cron.Schedule
	fn       JobFunc

	nextRun   time.Time
	lastRun   time.Time
	lastState schedule.RunStatus
	lastError string
	runCount  int64
	failCount int64
	running   bool
}

// Scheduler drives recurring jobs off one loop. All due-time math runs
// against an injectable clock.
type Scheduler struct {
	mu   sync.Mutex
	wg   sync.WaitGroup
	jobs map[string]*jobState

	runs   schedule.RunRepository
	idGen  idgen.Generator
	logger *logging.Logger
	tick   time.Duration
	now    func() time.Time
}

func New(runs schedule.RunRepository, idGen idgen.Generator, tick time.Duration, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if tick <= 0 {
		tick = 30 * time.Second
	}

	return &Scheduler{
		jobs:   make(map[string]*jobState, 8),
		runs:   runs,
		idGen:  idGen,
		logger: logger,
		tick:   tick,
		now:    time.Now,
	}
}

// Register adds a job. Cron specs use the standard five-field form; a job
// without a cron spec runs on its fixed interval.
func (s *Scheduler) Register(job schedule.Job, fn JobFunc) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if fn == nil {
		return fmt.Errorf("job %s has no body", job.Name)
	}

	state := &jobState{job: job, fn: fn}
	now := s.now()
	if job.CronSpec != "" {
		parsed, err := cron.ParseStandard(job.CronSpec)
		if err != nil {
			return fmt.Errorf("parse cron spec for job %s: %w", job.Name, err)
		}
		state.cronSpec = parsed
		state.nextRun = parsed.Next(now)
	} else {
		if job.Interval <= 0 {
			return fmt.Errorf("job %s needs a cron spec or a positive interval", job.Name)
		}
		state.nextRun = now.Add(job.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	s.jobs[job.Name] = state
	return nil
}

// Run drives the loop until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "scheduler started", "jobs", len(s.Status()), "tick", s.tick.String())
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.InfoContext(ctx, "scheduler stopped")
			return
		case <-ticker.C:
			s.runDue(ctx, s.now())
		}
	}
}

// runDue launches every enabled job whose due time has passed. Jobs run in
// their own goroutines so a slow job never delays the others, and a job still
// running from an earlier pass is skipped until it finishes. One job's
// failure or panic never stops the rest of the pass, and the job's next run
// still advances one cadence.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	for _, state := range s.due(now) {
		s.wg.Add(1)
		go func(state *jobState) {
			defer s.wg.Done()
			s.execute(ctx, state, now)
		}(state)
	}
}

// due claims each returned job by marking it in flight; execute releases the
// claim when the run finishes.
func (s *Scheduler) due(now time.Time) []*jobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*jobState, 0, len(s.jobs))
	for _, state := range s.jobs {
		if !state.job.Enabled || state.running {
			continue
		}
		if state.nextRun.After(now) {
			continue
		}
		state.running = true
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].job.Name < out[j].job.Name })
	return out
}

func (s *Scheduler) execute(ctx context.Context, state *jobState, now time.Time) {
	startedAt := s.now()
	err := s.invoke(ctx, state.fn)
	finishedAt := s.now()

	status := schedule.RunSucceeded
	errText := ""
	if err != nil {
		status = schedule.RunFailed
		errText = err.Error()
		s.logger.WarnContext(ctx, "scheduled job failed", "job", state.job.Name, "error", err)
	}

	s.mu.Lock()
	state.running = false
	state.lastRun = startedAt
	state.lastState = status
	state.lastError = errText
	state.runCount++
	if status == schedule.RunFailed {
		state.failCount++
	}
	if state.cronSpec != nil {
		state.nextRun = state.cronSpec.Next(now)
	} else {
		state.nextRun = now.Add(state.job.Interval)
	}
	s.mu.Unlock()

	s.record(ctx, state.job.Name, startedAt, finishedAt, status, errText)
}

func (s *Scheduler) invoke(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("job panicked: %v", recovered)
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) record(ctx context.Context, jobName string, startedAt, finishedAt time.Time, status schedule.RunStatus, errText string) {
	if s.runs == nil {
		return
	}

	runID, err := s.idGen.NewID()
	if err != nil {
		s.logger.WarnContext(ctx, "job run id generation failed", "job", jobName, "error", err)
		return
	}
	run := schedule.Run{
		ID:         runID,
		JobName:    jobName,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		Status:     status,
		Error:      errText,
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		s.logger.WarnContext(ctx, "job run persist failed", "job", jobName, "error", err)
	}
}

// TriggerNow runs one job immediately, outside its cadence. The next
// scheduled run is unaffected. A job that is already in flight is not
// started a second time.
func (s *Scheduler) TriggerNow(ctx context.Context, jobName string) error {
	s.mu.Lock()
	state, ok := s.jobs[jobName]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown job %s", jobName)
	}
	if state.running {
		s.mu.Unlock()
		return fmt.Errorf("job %s is already running", jobName)
	}
	state.running = true
	s.mu.Unlock()

	startedAt := s.now()
	err := s.invoke(ctx, state.fn)
	finishedAt := s.now()

	status := schedule.RunSucceeded
	errText := ""
	if err != nil {
		status = schedule.RunFailed
		errText = err.Error()
	}

	s.mu.Lock()
	state.running = false
	state.lastRun = startedAt
	state.lastState = status
	state.lastError = errText
	state.runCount++
	if status == schedule.RunFailed {
		state.failCount++
	}
	s.mu.Unlock()

	s.record(ctx, jobName, startedAt, finishedAt, status, errText)
	return err
}

// RunHistory returns the persisted runs for one job, newest first.
func (s *Scheduler) RunHistory(ctx context.Context, jobName string, limit int) ([]schedule.Run, error) {
	s.mu.Lock()
	_, ok := s.jobs[jobName]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobName)
	}
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListByJob(ctx, jobName, limit)
}

// Status reports a snapshot of every registered job, sorted by name.
func (s *Scheduler) Status() []schedule.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]schedule.Status, 0, len(s.jobs))
	for _, state := range s.jobs {
		out = append(out, schedule.Status{
			Name:      state.job.Name,
			Enabled:   state.job.Enabled,
			LastRunAt: state.lastRun,
			NextRunAt: state.nextRun,
			LastState: state.lastState,
			LastError: state.lastError,
			RunCount:  state.runCount,
			FailCount: state.failCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
