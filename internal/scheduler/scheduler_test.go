package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/schedule"
	"github.com/scoutpulse/scout-engine/internal/infrastructure/repository/memory"
	idgen "github.com/scoutpulse/scout-engine/internal/platform/id"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
)

func newTestScheduler(t *testing.T, at time.Time) (*Scheduler, *memory.ScheduleRunRepository, *time.Time) {
	t.Helper()

	runs := memory.NewScheduleRunRepository()
	s := New(runs, idgen.NewUUIDGenerator(), time.Second, logging.NewNop())
	clock := at
	s.now = func() time.Time { return clock }
	return s, runs, &clock
}

// runPass fires one scheduling pass and waits for every launched job to
// finish before returning.
func runPass(s *Scheduler, now time.Time) {
	s.runDue(context.Background(), now)
	s.wg.Wait()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestIntervalJobRunsOnCadence(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s, _, clock := newTestScheduler(t, base)

	var runCount atomic.Int64
	if err := s.Register(schedule.Job{Name: "transfer-check", Interval: 4 * time.Hour, Enabled: true}, func(context.Context) error {
		runCount.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	runPass(s, base.Add(time.Hour))
	if runCount.Load() != 0 {
		t.Fatalf("job ran before its interval elapsed")
	}

	*clock = base.Add(4 * time.Hour)
	runPass(s, *clock)
	if runCount.Load() != 1 {
		t.Fatalf("expected one run, got %d", runCount.Load())
	}

	// Same instant again: next run has advanced a full cadence.
	runPass(s, *clock)
	if runCount.Load() != 1 {
		t.Fatalf("job must not run twice at the same due time")
	}

	*clock = base.Add(8 * time.Hour)
	runPass(s, *clock)
	if runCount.Load() != 2 {
		t.Fatalf("expected second run after another interval, got %d", runCount.Load())
	}
}

func TestCronJobRunsAtSpecTime(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 1, 2, 0, 0, 0, time.UTC)
	s, _, clock := newTestScheduler(t, base)

	var runCount atomic.Int64
	if err := s.Register(schedule.Job{Name: "daily-sync", CronSpec: "0 3 * * *", Enabled: true}, func(context.Context) error {
		runCount.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	runPass(s, base.Add(30*time.Minute))
	if runCount.Load() != 0 {
		t.Fatalf("cron job ran before 03:00")
	}

	*clock = base.Add(90 * time.Minute)
	runPass(s, *clock)
	if runCount.Load() != 1 {
		t.Fatalf("cron job did not run at 03:30 pass, got %d", runCount.Load())
	}

	status := s.Status()
	if len(status) != 1 {
		t.Fatalf("expected one job status, got %d", len(status))
	}
	next := time.Date(2026, time.March, 2, 3, 0, 0, 0, time.UTC)
	if !status[0].NextRunAt.Equal(next) {
		t.Fatalf("next run not advanced to tomorrow 03:00, got %v", status[0].NextRunAt)
	}
}

func TestFailingJobDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s, runs, clock := newTestScheduler(t, base)

	var healthyRuns atomic.Int64
	if err := s.Register(schedule.Job{Name: "a-failing", Interval: time.Hour, Enabled: true}, func(context.Context) error {
		return fmt.Errorf("boom")
	}); err != nil {
		t.Fatalf("register failing: %v", err)
	}
	if err := s.Register(schedule.Job{Name: "b-healthy", Interval: time.Hour, Enabled: true}, func(context.Context) error {
		healthyRuns.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register healthy: %v", err)
	}

	*clock = base.Add(time.Hour)
	runPass(s, *clock)

	if healthyRuns.Load() != 1 {
		t.Fatalf("healthy job must run despite the failing one")
	}

	failed, err := runs.ListByJob(context.Background(), "a-failing", 10)
	if err != nil || len(failed) != 1 {
		t.Fatalf("expected one recorded run for failing job, got %d err=%v", len(failed), err)
	}
	if failed[0].Status != schedule.RunFailed || failed[0].Error == "" {
		t.Fatalf("failing run not recorded as failed: %+v", failed[0])
	}

	// The failing job still advances and runs again next cadence.
	*clock = base.Add(2 * time.Hour)
	runPass(s, *clock)
	failed, _ = runs.ListByJob(context.Background(), "a-failing", 10)
	if len(failed) != 2 {
		t.Fatalf("failing job must keep its cadence, got %d runs", len(failed))
	}
}

func TestPanickingJobIsCaught(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s, runs, clock := newTestScheduler(t, base)

	if err := s.Register(schedule.Job{Name: "panicky", Interval: time.Minute, Enabled: true}, func(context.Context) error {
		panic("unexpected state")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	*clock = base.Add(time.Minute)
	runPass(s, *clock)

	recorded, err := runs.ListByJob(context.Background(), "panicky", 10)
	if err != nil || len(recorded) != 1 {
		t.Fatalf("expected one recorded run, got %d err=%v", len(recorded), err)
	}
	if recorded[0].Status != schedule.RunFailed {
		t.Fatalf("panic must record a failed run, got %s", recorded[0].Status)
	}
}

func TestDisabledJobNeverRuns(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s, _, clock := newTestScheduler(t, base)

	var runCount atomic.Int64
	if err := s.Register(schedule.Job{Name: "dormant", Interval: time.Minute, Enabled: false}, func(context.Context) error {
		runCount.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	*clock = base.Add(time.Hour)
	runPass(s, *clock)
	if runCount.Load() != 0 {
		t.Fatalf("disabled job must not run")
	}
}

func TestTriggerNowKeepsSchedule(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s, _, _ := newTestScheduler(t, base)

	var runCount atomic.Int64
	if err := s.Register(schedule.Job{Name: "cache-warm", CronSpec: "0 6 * * *", Enabled: true}, func(context.Context) error {
		runCount.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	before := s.Status()[0].NextRunAt
	if err := s.TriggerNow(context.Background(), "cache-warm"); err != nil {
		t.Fatalf("trigger now: %v", err)
	}
	if runCount.Load() != 1 {
		t.Fatalf("on-demand trigger did not run the job")
	}
	if after := s.Status()[0].NextRunAt; !after.Equal(before) {
		t.Fatalf("on-demand run must not move the scheduled run: before=%v after=%v", before, after)
	}

	if err := s.TriggerNow(context.Background(), "missing"); err == nil {
		t.Fatal("unknown job must error")
	}
}

func TestSlowJobDoesNotDelayOthers(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s, _, clock := newTestScheduler(t, base)

	release := make(chan struct{})
	slowStarted := make(chan struct{})
	var slowRuns, quickRuns atomic.Int64
	if err := s.Register(schedule.Job{Name: "a-slow", Interval: time.Minute, Enabled: true}, func(context.Context) error {
		slowRuns.Add(1)
		close(slowStarted)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("register slow: %v", err)
	}
	if err := s.Register(schedule.Job{Name: "b-quick", Interval: time.Minute, Enabled: true}, func(context.Context) error {
		quickRuns.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register quick: %v", err)
	}

	*clock = base.Add(time.Minute)
	s.runDue(context.Background(), *clock)
	<-slowStarted

	// The quick job finishes while the slow one is still blocked.
	waitFor(t, "quick job first run", func() bool { return quickRuns.Load() == 1 })

	// Next pass: the quick job keeps its cadence, the in-flight slow job
	// is not started a second time.
	*clock = base.Add(2 * time.Minute)
	s.runDue(context.Background(), *clock)
	waitFor(t, "quick job second run", func() bool { return quickRuns.Load() == 2 })
	if slowRuns.Load() != 1 {
		t.Fatalf("in-flight job must not overlap itself, got %d runs", slowRuns.Load())
	}

	// On-demand triggers honour the same guard.
	if err := s.TriggerNow(context.Background(), "a-slow"); err == nil {
		t.Fatal("trigger of an in-flight job must error")
	}

	close(release)
	s.wg.Wait()
	if slowRuns.Load() != 1 {
		t.Fatalf("slow job ran %d times, want 1", slowRuns.Load())
	}
}

func TestRunHistoryReturnsRecordedRuns(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	s, _, _ := newTestScheduler(t, base)

	calls := 0
	if err := s.Register(schedule.Job{Name: "price-refresh", Interval: time.Hour, Enabled: true}, func(context.Context) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("upstream unavailable")
		}
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_ = s.TriggerNow(context.Background(), "price-refresh")
	if err := s.TriggerNow(context.Background(), "price-refresh"); err != nil {
		t.Fatalf("second trigger: %v", err)
	}

	history, err := s.RunHistory(context.Background(), "price-refresh", 10)
	if err != nil {
		t.Fatalf("run history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two recorded runs, got %d", len(history))
	}
	for _, run := range history {
		if run.JobName != "price-refresh" {
			t.Fatalf("history leaked run for %s", run.JobName)
		}
	}

	if _, err := s.RunHistory(context.Background(), "missing", 10); err == nil {
		t.Fatal("unknown job must error")
	}
}
