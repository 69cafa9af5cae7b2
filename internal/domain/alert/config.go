package alert

import "time"

// RuleConfig is a tenant's tuning for one rule type. Zero-valued thresholds
// fall back to the defaults below when normalized.
type RuleConfig struct {
	TenantID             string        `json:"tenant_id" db:"tenant_id"`
	Rule                 RuleType      `json:"rule" db:"rule"`
	Enabled              bool          `json:"enabled" db:"enabled"`
	ContractMonths       int           `json:"contract_months" db:"contract_months"`
	PriceDropFraction    float64       `json:"price_drop_fraction" db:"price_drop_fraction"`
	MinRating            float64       `json:"min_rating" db:"min_rating"`
	MaxAge               int           `json:"max_age" db:"max_age"`
	MaxBudget            float64       `json:"max_budget" db:"max_budget"`
	PerformanceThreshold float64       `json:"performance_threshold" db:"performance_threshold"`
	Suppression          time.Duration `json:"suppression" db:"suppression"`
}

func DefaultRuleConfig(tenantID string, rule RuleType) RuleConfig {
	return RuleConfig{
		TenantID:             tenantID,
		Rule:                 rule,
		Enabled:              true,
		ContractMonths:       6,
		PriceDropFraction:    0.15,
		MinRating:            7.0,
		MaxAge:               30,
		MaxBudget:            50,
		PerformanceThreshold: 0.8,
		Suppression:          SuppressionWindow(rule),
	}
}

func NormalizeRuleConfig(cfg RuleConfig) RuleConfig {
	defaults := DefaultRuleConfig(cfg.TenantID, cfg.Rule)
	if cfg.ContractMonths <= 0 {
		cfg.ContractMonths = defaults.ContractMonths
	}
	if cfg.PriceDropFraction <= 0 || cfg.PriceDropFraction >= 1 {
		cfg.PriceDropFraction = defaults.PriceDropFraction
	}
	if cfg.MinRating <= 0 {
		cfg.MinRating = defaults.MinRating
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaults.MaxAge
	}
	if cfg.MaxBudget <= 0 {
		cfg.MaxBudget = defaults.MaxBudget
	}
	if cfg.PerformanceThreshold <= 0 {
		cfg.PerformanceThreshold = defaults.PerformanceThreshold
	}
	if cfg.Suppression <= 0 {
		cfg.Suppression = defaults.Suppression
	}
	return cfg
}
