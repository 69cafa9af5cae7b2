package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/alert"
	"github.com/scoutpulse/scout-engine/internal/domain/player"
	"github.com/scoutpulse/scout-engine/internal/infrastructure/repository/memory"
	idgen "github.com/scoutpulse/scout-engine/internal/platform/id"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
	"github.com/scoutpulse/scout-engine/internal/usecase"
)

func newAlertService(t *testing.T) (*usecase.AlertService, *memory.AlertRepository, *memory.AlertConfigRepository) {
	t.Helper()

	alerts := memory.NewAlertRepository()
	configs := memory.NewAlertConfigRepository()
	service := usecase.NewAlertService(alerts, configs, idgen.NewUUIDGenerator(), nil, logging.NewNop())
	return service, alerts, configs
}

func droppedPriceSnapshot() player.Snapshot {
	return player.Snapshot{
		ID:                7,
		Name:              "Marco Test",
		Age:               26,
		MarketValue:       40,
		LastTransferValue: 50,
		OverallRating:     7.5,
	}
}

func TestEvaluateSnapshotFiresOncePerWindow(t *testing.T) {
	t.Parallel()

	service, _, configs := newAlertService(t)
	ctx := context.Background()
	if err := configs.Upsert(ctx, alert.DefaultRuleConfig("tenant-a", alert.RulePriceDrop)); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	snapshot := droppedPriceSnapshot()
	first, err := service.EvaluateSnapshot(ctx, "tenant-a", snapshot)
	if err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	if len(first) != 1 || first[0].Rule != alert.RulePriceDrop {
		t.Fatalf("expected one price drop alert, got %+v", first)
	}

	second, err := service.EvaluateSnapshot(ctx, "tenant-a", snapshot)
	if err != nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("duplicate inside suppression window must not fire, got %+v", second)
	}
}

func TestEvaluateSnapshotHonorsDisabledRules(t *testing.T) {
	t.Parallel()

	service, _, configs := newAlertService(t)
	ctx := context.Background()

	disabled := alert.DefaultRuleConfig("tenant-a", alert.RulePriceDrop)
	disabled.Enabled = false
	if err := configs.Upsert(ctx, disabled); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	created, err := service.EvaluateSnapshot(ctx, "tenant-a", droppedPriceSnapshot())
	if err != nil {
		t.Fatalf("evaluation: %v", err)
	}
	for _, a := range created {
		if a.Rule == alert.RulePriceDrop {
			t.Fatalf("disabled rule must not fire")
		}
	}
}

func TestEvaluateSnapshotIsolatesTenants(t *testing.T) {
	t.Parallel()

	service, _, configs := newAlertService(t)
	ctx := context.Background()
	for _, tenantID := range []string{"tenant-a", "tenant-b"} {
		if err := configs.Upsert(ctx, alert.DefaultRuleConfig(tenantID, alert.RulePriceDrop)); err != nil {
			t.Fatalf("seed config: %v", err)
		}
	}

	snapshot := droppedPriceSnapshot()
	if _, err := service.EvaluateSnapshot(ctx, "tenant-a", snapshot); err != nil {
		t.Fatalf("tenant-a evaluation: %v", err)
	}

	created, err := service.EvaluateSnapshot(ctx, "tenant-b", snapshot)
	if err != nil {
		t.Fatalf("tenant-b evaluation: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("tenant-a's alert must not suppress tenant-b, got %d", len(created))
	}
}

func TestRegisterConfigRejectsUnknownRule(t *testing.T) {
	t.Parallel()

	service, _, _ := newAlertService(t)
	_, err := service.RegisterConfig(context.Background(), alert.RuleConfig{
		TenantID: "tenant-a",
		Rule:     "moon_phase",
	})
	if err == nil {
		t.Fatal("expected rejection of unknown rule type")
	}
}

func TestMarkReadChecksTenantOwnership(t *testing.T) {
	t.Parallel()

	service, _, configs := newAlertService(t)
	ctx := context.Background()
	if err := configs.Upsert(ctx, alert.DefaultRuleConfig("tenant-a", alert.RulePriceDrop)); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	created, err := service.EvaluateSnapshot(ctx, "tenant-a", droppedPriceSnapshot())
	if err != nil || len(created) != 1 {
		t.Fatalf("expected one alert, got %d err=%v", len(created), err)
	}

	if err := service.MarkRead(ctx, "tenant-b", created[0].ID); err == nil {
		t.Fatal("foreign tenant must not mark alerts")
	}
	if err := service.MarkRead(ctx, "tenant-a", created[0].ID); err != nil {
		t.Fatalf("owner mark read failed: %v", err)
	}

	stats, err := service.Stats(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 || stats.Unread != 0 {
		t.Fatalf("unexpected stats after read: %+v", stats)
	}
}

func TestStatsCountsPriorities(t *testing.T) {
	t.Parallel()

	service, _, configs := newAlertService(t)
	ctx := context.Background()
	if err := configs.Upsert(ctx, alert.DefaultRuleConfig("tenant-a", alert.RuleContractEnding)); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	contractEnd := time.Now().AddDate(0, 2, 0)
	created, err := service.EvaluateSnapshot(ctx, "tenant-a", player.Snapshot{
		ID:             9,
		Name:           "Expiring Star",
		Age:            27,
		OverallRating:  8.0,
		MarketValue:    30,
		ContractEndsAt: &contractEnd,
	})
	if err != nil || len(created) != 1 {
		t.Fatalf("expected one alert, got %d err=%v", len(created), err)
	}

	stats, err := service.Stats(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.HighPriority != 1 {
		t.Fatalf("contract ending inside 3 months is high priority, stats=%+v", stats)
	}
	if stats.PerRule[alert.RuleContractEnding] != 1 {
		t.Fatalf("per-rule count missing: %+v", stats.PerRule)
	}
}
