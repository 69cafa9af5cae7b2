package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/webhook"
)

type WebhookEndpointRepository struct {
	mu    sync.RWMutex
	items map[string]webhook.Endpoint
}

func NewWebhookEndpointRepository() *WebhookEndpointRepository {
	return &WebhookEndpointRepository{items: make(map[string]webhook.Endpoint, 16)}
}

func (r *WebhookEndpointRepository) Upsert(_ context.Context, endpoint webhook.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[endpoint.ID] = endpoint
	return nil
}

func (r *WebhookEndpointRepository) GetByID(_ context.Context, id string) (webhook.Endpoint, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	return e, ok, nil
}

func (r *WebhookEndpointRepository) ListByTenant(_ context.Context, tenantID string) ([]webhook.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]webhook.Endpoint, 0, 8)
	for _, e := range r.items {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sortEndpoints(out)
	return out, nil
}

func (r *WebhookEndpointRepository) ListActive(_ context.Context, tenantID string, event webhook.EventType) ([]webhook.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]webhook.Endpoint, 0, 8)
	for _, e := range r.items {
		if !e.Active {
			continue
		}
		if tenantID != "" && e.TenantID != tenantID {
			continue
		}
		if !e.Subscribed(event) {
			continue
		}
		out = append(out, e)
	}
	sortEndpoints(out)
	return out, nil
}

func (r *WebhookEndpointRepository) RecordOutcome(_ context.Context, id string, success bool, disableAfter int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return nil
	}
	if success {
		e.ConsecutiveFailures = 0
	} else {
		e.ConsecutiveFailures++
		if disableAfter > 0 && e.ConsecutiveFailures >= disableAfter {
			e.Active = false
		}
	}
	r.items[id] = e
	return nil
}

func sortEndpoints(out []webhook.Endpoint) {
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
}

type WebhookDeliveryRepository struct {
	mu    sync.RWMutex
	items map[string]webhook.Delivery
}

func NewWebhookDeliveryRepository() *WebhookDeliveryRepository {
	return &WebhookDeliveryRepository{items: make(map[string]webhook.Delivery, 64)}
}

func (r *WebhookDeliveryRepository) Insert(_ context.Context, delivery webhook.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[delivery.ID] = delivery
	return nil
}

func (r *WebhookDeliveryRepository) Update(_ context.Context, delivery webhook.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[delivery.ID] = delivery
	return nil
}

func (r *WebhookDeliveryRepository) GetByID(_ context.Context, id string) (webhook.Delivery, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.items[id]
	return d, ok, nil
}

func (r *WebhookDeliveryRepository) ListByEndpoint(_ context.Context, endpointID string, limit int) ([]webhook.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]webhook.Delivery, 0, 16)
	for _, d := range r.items {
		if d.EndpointID == endpointID {
			out = append(out, d)
		}
	}
	return sortDeliveries(out, limit), nil
}

func (r *WebhookDeliveryRepository) ListByStatus(_ context.Context, status webhook.DeliveryStatus, limit int) ([]webhook.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]webhook.Delivery, 0, 16)
	for _, d := range r.items {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return sortDeliveries(out, limit), nil
}

func (r *WebhookDeliveryRepository) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, d := range r.items {
		if d.Status != webhook.StatusDelivered && d.Status != webhook.StatusFailed {
			continue
		}
		if d.CreatedAt.Before(cutoff) {
			delete(r.items, id)
			removed++
		}
	}
	return removed, nil
}

func sortDeliveries(out []webhook.Delivery, limit int) []webhook.Delivery {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
