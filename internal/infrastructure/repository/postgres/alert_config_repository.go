package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/scoutpulse/scout-engine/internal/domain/alert"
	qb "github.com/scoutpulse/scout-engine/internal/platform/querybuilder"
)

type alertConfigTableModel struct {
	TenantID             string  `db:"tenant_id"`
	Rule                 string  `db:"rule"`
	Enabled              bool    `db:"enabled"`
	ContractMonths       int     `db:"contract_months"`
	PriceDropFraction    float64 `db:"price_drop_fraction"`
	MinRating            float64 `db:"min_rating"`
	MaxAge               int     `db:"max_age"`
	MaxBudget            float64 `db:"max_budget"`
	PerformanceThreshold float64 `db:"performance_threshold"`
	SuppressionSeconds   int64   `db:"suppression_seconds"`
}

func (m alertConfigTableModel) toDomain() alert.RuleConfig {
	return alert.RuleConfig{
		TenantID:             m.TenantID,
		Rule:                 alert.RuleType(m.Rule),
		Enabled:              m.Enabled,
		ContractMonths:       m.ContractMonths,
		PriceDropFraction:    m.PriceDropFraction,
		MinRating:            m.MinRating,
		MaxAge:               m.MaxAge,
		MaxBudget:            m.MaxBudget,
		PerformanceThreshold: m.PerformanceThreshold,
		Suppression:          time.Duration(m.SuppressionSeconds) * time.Second,
	}
}

type AlertConfigRepository struct {
	db *sqlx.DB
}

func NewAlertConfigRepository(db *sqlx.DB) *AlertConfigRepository {
	return &AlertConfigRepository{db: db}
}

const alertConfigUpsertSuffix = `ON CONFLICT (tenant_id, rule) DO UPDATE SET
	enabled = EXCLUDED.enabled,
	contract_months = EXCLUDED.contract_months,
	price_drop_fraction = EXCLUDED.price_drop_fraction,
	min_rating = EXCLUDED.min_rating,
	max_age = EXCLUDED.max_age,
	max_budget = EXCLUDED.max_budget,
	performance_threshold = EXCLUDED.performance_threshold,
	suppression_seconds = EXCLUDED.suppression_seconds`

func (r *AlertConfigRepository) Upsert(ctx context.Context, cfg alert.RuleConfig) error {
	query, args, err := qb.InsertInto("alert_rule_configs").
		Columns(
			"tenant_id", "rule", "enabled",
			"contract_months", "price_drop_fraction", "min_rating",
			"max_age", "max_budget", "performance_threshold", "suppression_seconds",
		).
		Values(
			cfg.TenantID, string(cfg.Rule), cfg.Enabled,
			cfg.ContractMonths, cfg.PriceDropFraction, cfg.MinRating,
			cfg.MaxAge, cfg.MaxBudget, cfg.PerformanceThreshold, int64(cfg.Suppression/time.Second),
		).
		Suffix(alertConfigUpsertSuffix).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert rule config query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert rule config: %w", err)
	}
	return nil
}

func (r *AlertConfigRepository) ListByTenant(ctx context.Context, tenantID string) ([]alert.RuleConfig, error) {
	query, args, err := qb.Select("*").From("alert_rule_configs").
		Where(qb.Eq("tenant_id", tenantID)).
		OrderBy("rule").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list rule configs query: %w", err)
	}

	var rows []alertConfigTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list rule configs: %w", err)
	}

	out := make([]alert.RuleConfig, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *AlertConfigRepository) Tenants(ctx context.Context) ([]string, error) {
	query, args, err := qb.Select("DISTINCT tenant_id").From("alert_rule_configs").
		OrderBy("tenant_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list tenants query: %w", err)
	}

	var out []string
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return out, nil
}
