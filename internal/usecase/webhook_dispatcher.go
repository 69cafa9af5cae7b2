package usecase

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/scoutpulse/scout-engine/internal/domain/webhook"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
	"github.com/scoutpulse/scout-engine/internal/platform/resilience"
)

const (
	defaultDeliveryHistoryLimit = 50
	recoverPendingBatch         = 256
)

// Event is one notification heading for a tenant's webhook endpoints.
type Event struct {
	TenantID  string
	Type      webhook.EventType
	SubjectID int64
	Payload   map[string]any
}

type WebhookDispatcherConfig struct {
	Workers      int
	MaxAttempts  int
	DisableAfter int
	Timeout      time.Duration
	Backoff      resilience.Backoff
}

// WebhookDispatcher delivers events asynchronously. Enqueue persists one
// pending delivery per subscribed endpoint and hands it to the worker pool;
// the caller never waits on the network.
type WebhookDispatcher struct {
	endpoints  webhook.EndpointRepository
	deliveries webhook.DeliveryRepository
	httpClient *http.Client
	pool       *ants.Pool
	logger     *logging.Logger

	maxAttempts  int
	disableAfter int
	backoff      resilience.Backoff

	done        chan struct{}
	completions chan webhook.Delivery

	now func() time.Time
}

func NewWebhookDispatcher(
	endpoints webhook.EndpointRepository,
	deliveries webhook.DeliveryRepository,
	cfg WebhookDispatcherConfig,
	logger *logging.Logger,
) (*WebhookDispatcher, error) {
	if logger == nil {
		logger = logging.Default()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create delivery worker pool: %w", err)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	disableAfter := cfg.DisableAfter
	if disableAfter <= 0 {
		disableAfter = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookDispatcher{
		endpoints:    endpoints,
		deliveries:   deliveries,
		httpClient:   &http.Client{Timeout: timeout},
		pool:         pool,
		logger:       logger,
		maxAttempts:  maxAttempts,
		disableAfter: disableAfter,
		backoff:      resilience.NormalizeBackoff(cfg.Backoff),
		done:         make(chan struct{}),
		completions:  make(chan webhook.Delivery, 64),
		now:          time.Now,
	}, nil
}

// Completions emits every delivery that reaches a terminal state. The channel
// is buffered and drops when nobody reads it.
func (d *WebhookDispatcher) Completions() <-chan webhook.Delivery {
	return d.completions
}

// Publish satisfies AlertPublisher.
func (d *WebhookDispatcher) Publish(ctx context.Context, tenantID string, event webhook.EventType, subjectID int64, payload map[string]any) error {
	_, err := d.Enqueue(ctx, Event{
		TenantID:  tenantID,
		Type:      event,
		SubjectID: subjectID,
		Payload:   payload,
	})
	return err
}

// Enqueue creates one pending delivery per active subscribed endpoint and
// returns their IDs immediately.
func (d *WebhookDispatcher) Enqueue(ctx context.Context, event Event) ([]string, error) {
	ctx, span := startUsecaseSpan(ctx, "WebhookDispatcher.Enqueue")
	defer span.End()

	event.TenantID = strings.TrimSpace(event.TenantID)
	if event.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: event type is required", ErrInvalidInput)
	}

	endpoints, err := d.endpoints.ListActive(ctx, event.TenantID, event.Type)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}

	ids := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		delivery := webhook.Delivery{
			ID:         uuid.NewString(),
			EndpointID: endpoint.ID,
			TenantID:   event.TenantID,
			Event:      event.Type,
			SubjectID:  event.SubjectID,
			Payload:    event.Payload,
			Status:     webhook.StatusPending,
			CreatedAt:  d.now(),
		}
		if err := d.deliveries.Insert(ctx, delivery); err != nil {
			return nil, fmt.Errorf("insert delivery: %w", err)
		}
		ids = append(ids, delivery.ID)

		endpoint := endpoint
		if err := d.pool.Submit(func() { d.deliver(delivery, endpoint) }); err != nil {
			d.logger.WarnContext(ctx, "delivery worker submit failed",
				"delivery_id", delivery.ID, "error", err)
		}
	}
	return ids, nil
}

// RecoverPending re-submits persisted deliveries that never reached a
// terminal state, for example because a worker submit failed or the process
// stopped mid-flight. olderThan filters out deliveries still being worked:
// it must exceed the worst-case retry span, except at startup where no
// workers are competing and zero recovers everything.
func (d *WebhookDispatcher) RecoverPending(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "WebhookDispatcher.RecoverPending")
	defer span.End()

	pending, err := d.deliveries.ListByStatus(ctx, webhook.StatusPending, recoverPendingBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending deliveries: %w", err)
	}

	cutoff := d.now().Add(-olderThan)
	resubmitted := 0
	for _, delivery := range pending {
		lastActivity := delivery.CreatedAt
		if delivery.LastAttemptAt.After(lastActivity) {
			lastActivity = delivery.LastAttemptAt
		}
		if lastActivity.After(cutoff) {
			continue
		}

		endpoint, found, err := d.endpoints.GetByID(ctx, delivery.EndpointID)
		if err != nil {
			return resubmitted, fmt.Errorf("get endpoint %s: %w", delivery.EndpointID, err)
		}
		if !found || !endpoint.Active {
			d.finish(ctx, delivery, webhook.StatusFailed)
			continue
		}

		delivery := delivery
		if err := d.pool.Submit(func() { d.deliver(delivery, endpoint) }); err != nil {
			d.logger.WarnContext(ctx, "delivery worker submit failed",
				"delivery_id", delivery.ID, "error", err)
			continue
		}
		resubmitted++
	}
	return resubmitted, nil
}

// RegisterEndpoint stores a webhook endpoint for a tenant. New endpoints
// start active with a zero failure streak.
func (d *WebhookDispatcher) RegisterEndpoint(ctx context.Context, endpoint webhook.Endpoint) (webhook.Endpoint, error) {
	ctx, span := startUsecaseSpan(ctx, "WebhookDispatcher.RegisterEndpoint")
	defer span.End()

	endpoint.TenantID = strings.TrimSpace(endpoint.TenantID)
	if endpoint.TenantID == "" {
		return webhook.Endpoint{}, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	parsed, err := url.Parse(strings.TrimSpace(endpoint.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return webhook.Endpoint{}, fmt.Errorf("%w: endpoint url must be absolute http(s)", ErrInvalidInput)
	}
	endpoint.URL = parsed.String()
	if strings.TrimSpace(endpoint.Secret) == "" {
		return webhook.Endpoint{}, fmt.Errorf("%w: signing secret is required", ErrInvalidInput)
	}
	for _, event := range endpoint.Events {
		if !webhook.ValidEventType(event) {
			return webhook.Endpoint{}, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, event)
		}
	}

	if endpoint.ID == "" {
		endpoint.ID = uuid.NewString()
		endpoint.Active = true
		endpoint.ConsecutiveFailures = 0
		endpoint.CreatedAt = d.now()
	}
	if err := d.endpoints.Upsert(ctx, endpoint); err != nil {
		return webhook.Endpoint{}, fmt.Errorf("upsert endpoint: %w", err)
	}
	return endpoint, nil
}

// Endpoints lists a tenant's registered endpoints.
func (d *WebhookDispatcher) Endpoints(ctx context.Context, tenantID string) ([]webhook.Endpoint, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	return d.endpoints.ListByTenant(ctx, tenantID)
}

// DisableEndpoint turns an endpoint off without losing its delivery history.
// It refuses to touch endpoints owned by another tenant.
func (d *WebhookDispatcher) DisableEndpoint(ctx context.Context, tenantID, endpointID string) error {
	ctx, span := startUsecaseSpan(ctx, "WebhookDispatcher.DisableEndpoint")
	defer span.End()

	endpoint, found, err := d.endpoints.GetByID(ctx, endpointID)
	if err != nil {
		return fmt.Errorf("get endpoint %s: %w", endpointID, err)
	}
	if !found || endpoint.TenantID != tenantID {
		return fmt.Errorf("%w: endpoint %s", ErrNotFound, endpointID)
	}
	if !endpoint.Active {
		return nil
	}
	endpoint.Active = false
	if err := d.endpoints.Upsert(ctx, endpoint); err != nil {
		return fmt.Errorf("upsert endpoint: %w", err)
	}
	return nil
}

// DeliveryHistory lists the most recent deliveries for one endpoint, newest
// first. The endpoint must belong to the tenant.
func (d *WebhookDispatcher) DeliveryHistory(ctx context.Context, tenantID, endpointID string, limit int) ([]webhook.Delivery, error) {
	endpoint, found, err := d.endpoints.GetByID(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("get endpoint %s: %w", endpointID, err)
	}
	if !found || endpoint.TenantID != tenantID {
		return nil, fmt.Errorf("%w: endpoint %s", ErrNotFound, endpointID)
	}
	if limit <= 0 {
		limit = defaultDeliveryHistoryLimit
	}
	return d.deliveries.ListByEndpoint(ctx, endpointID, limit)
}

// Delivery reports the current state of one delivery.
func (d *WebhookDispatcher) Delivery(ctx context.Context, id string) (webhook.Delivery, error) {
	delivery, found, err := d.deliveries.GetByID(ctx, id)
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("get delivery %s: %w", id, err)
	}
	if !found {
		return webhook.Delivery{}, fmt.Errorf("%w: delivery %s", ErrNotFound, id)
	}
	return delivery, nil
}

func (d *WebhookDispatcher) deliver(delivery webhook.Delivery, endpoint webhook.Endpoint) {
	ctx := context.Background()

	body, err := d.encodeBody(delivery)
	if err != nil {
		d.logger.ErrorContext(ctx, "delivery payload encode failed", "delivery_id", delivery.ID, "error", err)
		d.finish(ctx, delivery, webhook.StatusFailed)
		return
	}

	// Attempts already on the record count against the ceiling, so a
	// recovered delivery resumes where it stopped instead of starting over.
	for delivery.AttemptCount < d.maxAttempts {
		now := d.now()
		statusCode, attemptErr := d.post(ctx, endpoint, body)

		delivery.AttemptCount++
		delivery.LastAttemptAt = now
		record := webhook.Attempt{At: now, StatusCode: statusCode}
		if attemptErr != nil {
			record.Error = attemptErr.Error()
		}
		delivery.Attempts = append(delivery.Attempts, record)

		if attemptErr == nil {
			delivery.DeliveredAt = now
			delivery.NextRetryAt = time.Time{}
			d.recordOutcome(ctx, endpoint.ID, true)
			d.finish(ctx, delivery, webhook.StatusDelivered)
			return
		}

		d.recordOutcome(ctx, endpoint.ID, false)
		if delivery.AttemptCount >= d.maxAttempts {
			break
		}

		delay := d.backoff.Delay(delivery.AttemptCount - 1)
		delivery.NextRetryAt = now.Add(delay)
		if err := d.deliveries.Update(ctx, delivery); err != nil {
			d.logger.WarnContext(ctx, "delivery progress update failed", "delivery_id", delivery.ID, "error", err)
		}
		if !resilience.Sleep(d.done, delay) {
			return
		}
	}

	delivery.NextRetryAt = time.Time{}
	d.logger.WarnContext(ctx, "delivery attempts exhausted",
		"delivery_id", delivery.ID, "endpoint_id", endpoint.ID,
		"attempts", delivery.AttemptCount, "error", ErrDeliveryExhausted)
	d.finish(ctx, delivery, webhook.StatusFailed)
}

func (d *WebhookDispatcher) encodeBody(delivery webhook.Delivery) ([]byte, error) {
	return sonic.Marshal(map[string]any{
		"eventType":   string(delivery.Event),
		"tenantId":    delivery.TenantID,
		"subjectId":   delivery.SubjectID,
		"payload":     delivery.Payload,
		"deliveredAt": d.now().UTC().Format(time.RFC3339),
	})
}

func (d *WebhookDispatcher) post(ctx context.Context, endpoint webhook.Endpoint, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if endpoint.Secret != "" {
		req.Header.Set("X-Scout-Signature", signPayload(endpoint.Secret, body))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("endpoint status=%d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (d *WebhookDispatcher) finish(ctx context.Context, delivery webhook.Delivery, status webhook.DeliveryStatus) {
	delivery.Status = status
	if err := d.deliveries.Update(ctx, delivery); err != nil {
		d.logger.ErrorContext(ctx, "delivery final update failed", "delivery_id", delivery.ID, "error", err)
	}
	select {
	case d.completions <- delivery:
	default:
	}
}

func (d *WebhookDispatcher) recordOutcome(ctx context.Context, endpointID string, success bool) {
	if err := d.endpoints.RecordOutcome(ctx, endpointID, success, d.disableAfter); err != nil {
		d.logger.WarnContext(ctx, "endpoint outcome update failed", "endpoint_id", endpointID, "error", err)
	}
}

// Close stops retry waits and releases the worker pool.
func (d *WebhookDispatcher) Close() {
	close(d.done)
	d.pool.Release()
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
