package memory

import (
	"context"
	"testing"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/schedule"
	"github.com/scoutpulse/scout-engine/internal/domain/webhook"
)

func TestDeleteTerminalBeforeKeepsPendingAndRecent(t *testing.T) {
	t.Parallel()

	repo := NewWebhookDeliveryRepository()
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cutoff := base.Add(24 * time.Hour)

	seed := []webhook.Delivery{
		{ID: "old-delivered", EndpointID: "ep-1", Status: webhook.StatusDelivered, CreatedAt: base},
		{ID: "old-failed", EndpointID: "ep-1", Status: webhook.StatusFailed, CreatedAt: base},
		{ID: "old-pending", EndpointID: "ep-1", Status: webhook.StatusPending, CreatedAt: base},
		{ID: "new-delivered", EndpointID: "ep-1", Status: webhook.StatusDelivered, CreatedAt: cutoff.Add(time.Hour)},
	}
	for _, d := range seed {
		if err := repo.Insert(context.Background(), d); err != nil {
			t.Fatalf("insert %s: %v", d.ID, err)
		}
	}

	removed, err := repo.DeleteTerminalBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("delete terminal: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	for _, id := range []string{"old-pending", "new-delivered"} {
		if _, found, _ := repo.GetByID(context.Background(), id); !found {
			t.Fatalf("delivery %s must survive the prune", id)
		}
	}
	for _, id := range []string{"old-delivered", "old-failed"} {
		if _, found, _ := repo.GetByID(context.Background(), id); found {
			t.Fatalf("delivery %s must be pruned", id)
		}
	}
}

func TestDeleteBeforePrunesOldRuns(t *testing.T) {
	t.Parallel()

	repo := NewScheduleRunRepository()
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cutoff := base.Add(24 * time.Hour)

	seed := []schedule.Run{
		{ID: "run-old", JobName: "daily-sync", StartedAt: base, Status: schedule.RunSucceeded},
		{ID: "run-new", JobName: "daily-sync", StartedAt: cutoff.Add(time.Hour), Status: schedule.RunFailed},
	}
	for _, run := range seed {
		if err := repo.Insert(context.Background(), run); err != nil {
			t.Fatalf("insert %s: %v", run.ID, err)
		}
	}

	removed, err := repo.DeleteBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	runs, err := repo.ListByJob(context.Background(), "daily-sync", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-new" {
		t.Fatalf("expected only the recent run to survive, got %+v", runs)
	}
}
