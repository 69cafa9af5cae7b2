package webhook

import (
	"context"
	"time"
)

// EndpointRepository persists tenant delivery targets.
type EndpointRepository interface {
	Upsert(ctx context.Context, endpoint Endpoint) error
	GetByID(ctx context.Context, id string) (Endpoint, bool, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Endpoint, error)
	// ListActive returns enabled endpoints subscribed to the event across
	// all tenants, or for a single tenant when tenantID is non-empty.
	ListActive(ctx context.Context, tenantID string, event EventType) ([]Endpoint, error)
	// RecordOutcome adjusts the endpoint failure streak. A success resets it;
	// a failure increments it and disables the endpoint once the streak
	// reaches disableAfter.
	RecordOutcome(ctx context.Context, id string, success bool, disableAfter int) error
}

// DeliveryRepository persists delivery records and their attempt trails.
type DeliveryRepository interface {
	Insert(ctx context.Context, delivery Delivery) error
	Update(ctx context.Context, delivery Delivery) error
	GetByID(ctx context.Context, id string) (Delivery, bool, error)
	ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]Delivery, error)
	ListByStatus(ctx context.Context, status DeliveryStatus, limit int) ([]Delivery, error)
	// DeleteTerminalBefore removes delivered and failed records created
	// before cutoff, keeping the table from growing without bound.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}
