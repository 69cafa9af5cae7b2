package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/alert"
	"github.com/scoutpulse/scout-engine/internal/domain/player"
	"github.com/scoutpulse/scout-engine/internal/domain/webhook"
	idgen "github.com/scoutpulse/scout-engine/internal/platform/id"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
)

// AlertPublisher fans persisted alerts out to external consumers. Publishing
// failures never block or roll back alert creation.
type AlertPublisher interface {
	Publish(ctx context.Context, tenantID string, event webhook.EventType, subjectID int64, payload map[string]any) error
}

type AlertService struct {
	alerts    alert.Repository
	configs   alert.ConfigRepository
	idGen     idgen.Generator
	publisher AlertPublisher
	logger    *logging.Logger
	now       func() time.Time
}

func NewAlertService(
	alerts alert.Repository,
	configs alert.ConfigRepository,
	idGen idgen.Generator,
	publisher AlertPublisher,
	logger *logging.Logger,
) *AlertService {
	if logger == nil {
		logger = logging.Default()
	}

	return &AlertService{
		alerts:    alerts,
		configs:   configs,
		idGen:     idGen,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// EvaluateSnapshot runs every enabled rule for one tenant over one player
// snapshot and persists the candidates that survive deduplication.
func (s *AlertService) EvaluateSnapshot(ctx context.Context, tenantID string, snapshot player.Snapshot) ([]alert.Alert, error) {
	ctx, span := startUsecaseSpan(ctx, "AlertService.EvaluateSnapshot")
	defer span.End()

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}

	configs, err := s.configsByRule(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	created := make([]alert.Alert, 0, 2)
	for _, rule := range alert.AllRuleTypes {
		cfg := configs[rule]
		if !cfg.Enabled {
			continue
		}

		candidate, fired := alert.Evaluate(rule, snapshot, cfg, now)
		if !fired {
			continue
		}

		newID, err := s.idGen.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate alert id: %w", err)
		}

		a := alert.Alert{
			ID:        newID,
			TenantID:  tenantID,
			Rule:      candidate.Rule,
			SubjectID: candidate.SubjectID,
			Priority:  candidate.Priority,
			Title:     candidate.Title,
			Message:   candidate.Message,
			Payload:   candidate.Payload,
			CreatedAt: now,
			ExpiresAt: now.Add(cfg.Suppression),
		}

		inserted, err := s.alerts.InsertIfAbsent(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("persist alert rule=%s subject=%d: %w", rule, a.SubjectID, err)
		}
		if !inserted {
			continue
		}

		created = append(created, a)
		s.publish(ctx, a)
	}

	return created, nil
}

// EvaluateAll runs a full evaluation pass over the given snapshots for every
// tenant that has rule configuration. Per-tenant failures are logged and do
// not abort the pass.
func (s *AlertService) EvaluateAll(ctx context.Context, snapshots []player.Snapshot) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "AlertService.EvaluateAll")
	defer span.End()

	tenants, err := s.configs.Tenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	total := 0
	for _, tenantID := range tenants {
		for _, snapshot := range snapshots {
			created, err := s.EvaluateSnapshot(ctx, tenantID, snapshot)
			if err != nil {
				s.logger.WarnContext(ctx, "alert evaluation failed",
					"tenant_id", tenantID, "player_id", snapshot.ID, "error", err)
				continue
			}
			total += len(created)
		}
	}
	return total, nil
}

func (s *AlertService) publish(ctx context.Context, a alert.Alert) {
	if s.publisher == nil {
		return
	}

	payload := map[string]any{
		"alert_id": a.ID,
		"rule":     string(a.Rule),
		"priority": string(a.Priority),
		"title":    a.Title,
		"message":  a.Message,
		"details":  a.Payload,
	}
	if err := s.publisher.Publish(ctx, a.TenantID, webhook.EventAlertCreated, a.SubjectID, payload); err != nil {
		s.logger.WarnContext(ctx, "alert fan-out failed", "alert_id", a.ID, "error", err)
	}
	if a.Priority == alert.PriorityHigh || a.Priority == alert.PriorityCritical {
		if err := s.publisher.Publish(ctx, a.TenantID, webhook.EventAlertCritical, a.SubjectID, payload); err != nil {
			s.logger.WarnContext(ctx, "critical alert fan-out failed", "alert_id", a.ID, "error", err)
		}
	}
}

func (s *AlertService) configsByRule(ctx context.Context, tenantID string) (map[alert.RuleType]alert.RuleConfig, error) {
	stored, err := s.configs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list rule configs tenant=%s: %w", tenantID, err)
	}

	out := make(map[alert.RuleType]alert.RuleConfig, len(alert.AllRuleTypes))
	for _, rule := range alert.AllRuleTypes {
		out[rule] = alert.DefaultRuleConfig(tenantID, rule)
	}
	for _, cfg := range stored {
		out[cfg.Rule] = alert.NormalizeRuleConfig(cfg)
	}
	return out, nil
}

// RegisterConfig stores one tenant rule configuration after validation.
func (s *AlertService) RegisterConfig(ctx context.Context, cfg alert.RuleConfig) (alert.RuleConfig, error) {
	ctx, span := startUsecaseSpan(ctx, "AlertService.RegisterConfig")
	defer span.End()

	cfg.TenantID = strings.TrimSpace(cfg.TenantID)
	if cfg.TenantID == "" {
		return alert.RuleConfig{}, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if !alert.ValidRuleType(cfg.Rule) {
		return alert.RuleConfig{}, fmt.Errorf("%w: unknown rule type %q", ErrInvalidInput, cfg.Rule)
	}

	cfg = alert.NormalizeRuleConfig(cfg)
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return alert.RuleConfig{}, fmt.Errorf("upsert rule config: %w", err)
	}
	return cfg, nil
}

// Configs returns the tenant's effective configuration for every rule,
// defaults filled in for rules never customized.
func (s *AlertService) Configs(ctx context.Context, tenantID string) ([]alert.RuleConfig, error) {
	byRule, err := s.configsByRule(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	out := make([]alert.RuleConfig, 0, len(alert.AllRuleTypes))
	for _, rule := range alert.AllRuleTypes {
		out = append(out, byRule[rule])
	}
	return out, nil
}

func (s *AlertService) List(ctx context.Context, tenantID string, f alert.Filter) ([]alert.Alert, error) {
	ctx, span := startUsecaseSpan(ctx, "AlertService.List")
	defer span.End()

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if f.Rule != "" && !alert.ValidRuleType(f.Rule) {
		return nil, fmt.Errorf("%w: unknown rule type %q", ErrInvalidInput, f.Rule)
	}
	return s.alerts.List(ctx, tenantID, f)
}

func (s *AlertService) MarkRead(ctx context.Context, tenantID, alertID string) error {
	return s.mark(ctx, tenantID, alertID, s.alerts.MarkRead)
}

func (s *AlertService) MarkActed(ctx context.Context, tenantID, alertID string) error {
	return s.mark(ctx, tenantID, alertID, s.alerts.MarkActed)
}

func (s *AlertService) mark(ctx context.Context, tenantID, alertID string, apply func(context.Context, string) error) error {
	a, found, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return fmt.Errorf("get alert %s: %w", alertID, err)
	}
	if !found || a.TenantID != strings.TrimSpace(tenantID) {
		return fmt.Errorf("%w: alert %s", ErrNotFound, alertID)
	}
	return apply(ctx, alertID)
}

func (s *AlertService) Stats(ctx context.Context, tenantID string) (alert.Stats, error) {
	ctx, span := startUsecaseSpan(ctx, "AlertService.Stats")
	defer span.End()

	alerts, err := s.alerts.List(ctx, strings.TrimSpace(tenantID), alert.Filter{})
	if err != nil {
		return alert.Stats{}, fmt.Errorf("list alerts: %w", err)
	}

	stats := alert.Stats{PerRule: make(map[alert.RuleType]int, len(alert.AllRuleTypes))}
	for _, a := range alerts {
		stats.Total++
		if !a.Read {
			stats.Unread++
		}
		if a.Priority == alert.PriorityHigh || a.Priority == alert.PriorityCritical {
			stats.HighPriority++
		}
		stats.PerRule[a.Rule]++
	}
	return stats, nil
}

// PruneExpired drops alerts whose suppression window has passed. Run by the
// hourly sweep job.
func (s *AlertService) PruneExpired(ctx context.Context) (int, error) {
	removed, err := s.alerts.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired alerts: %w", err)
	}
	return removed, nil
}
