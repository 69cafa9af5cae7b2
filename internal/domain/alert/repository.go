package alert

import (
	"context"
	"time"
)

// Filter narrows alert listings.
type Filter struct {
	Rule       RuleType
	UnreadOnly bool
	Limit      int
}

// Repository persists alerts. InsertIfAbsent must check for a live duplicate
// and insert as one atomic step per dedup key; two concurrent evaluation
// passes for the same subject must not both insert.
type Repository interface {
	InsertIfAbsent(ctx context.Context, a Alert) (bool, error)
	List(ctx context.Context, tenantID string, f Filter) ([]Alert, error)
	GetByID(ctx context.Context, id string) (Alert, bool, error)
	MarkRead(ctx context.Context, id string) error
	MarkActed(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// ConfigRepository stores per-tenant rule configurations.
type ConfigRepository interface {
	Upsert(ctx context.Context, cfg RuleConfig) error
	ListByTenant(ctx context.Context, tenantID string) ([]RuleConfig, error)
	Tenants(ctx context.Context) ([]string, error)
}
