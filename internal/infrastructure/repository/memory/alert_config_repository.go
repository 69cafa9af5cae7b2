package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/scoutpulse/scout-engine/internal/domain/alert"
)

type AlertConfigRepository struct {
	mu    sync.RWMutex
	items map[string]map[alert.RuleType]alert.RuleConfig
}

func NewAlertConfigRepository() *AlertConfigRepository {
	return &AlertConfigRepository{
		items: make(map[string]map[alert.RuleType]alert.RuleConfig, 16),
	}
}

func (r *AlertConfigRepository) Upsert(_ context.Context, cfg alert.RuleConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byRule, ok := r.items[cfg.TenantID]
	if !ok {
		byRule = make(map[alert.RuleType]alert.RuleConfig, len(alert.AllRuleTypes))
		r.items[cfg.TenantID] = byRule
	}
	byRule[cfg.Rule] = cfg
	return nil
}

func (r *AlertConfigRepository) ListByTenant(_ context.Context, tenantID string) ([]alert.RuleConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byRule := r.items[tenantID]
	out := make([]alert.RuleConfig, 0, len(byRule))
	for _, cfg := range byRule {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rule < out[j].Rule })
	return out, nil
}

func (r *AlertConfigRepository) Tenants(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.items))
	for tenantID := range r.items {
		out = append(out, tenantID)
	}
	sort.Strings(out)
	return out, nil
}
