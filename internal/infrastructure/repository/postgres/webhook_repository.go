package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/scoutpulse/scout-engine/internal/domain/webhook"
	qb "github.com/scoutpulse/scout-engine/internal/platform/querybuilder"
)

type webhookEndpointTableModel struct {
	ID                  string    `db:"id"`
	TenantID            string    `db:"tenant_id"`
	URL                 string    `db:"url"`
	Secret              string    `db:"secret"`
	Events              []byte    `db:"events"`
	Active              bool      `db:"active"`
	ConsecutiveFailures int       `db:"consecutive_failures"`
	CreatedAt           time.Time `db:"created_at"`
}

func (m webhookEndpointTableModel) toDomain() (webhook.Endpoint, error) {
	out := webhook.Endpoint{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		URL:                 m.URL,
		Secret:              m.Secret,
		Active:              m.Active,
		ConsecutiveFailures: m.ConsecutiveFailures,
		CreatedAt:           m.CreatedAt,
	}
	if len(m.Events) > 0 {
		if err := sonic.Unmarshal(m.Events, &out.Events); err != nil {
			return webhook.Endpoint{}, fmt.Errorf("decode endpoint events: %w", err)
		}
	}
	return out, nil
}

type WebhookEndpointRepository struct {
	db *sqlx.DB
}

func NewWebhookEndpointRepository(db *sqlx.DB) *WebhookEndpointRepository {
	return &WebhookEndpointRepository{db: db}
}

const endpointUpsertSuffix = `ON CONFLICT (id) DO UPDATE SET
	url = EXCLUDED.url,
	secret = EXCLUDED.secret,
	events = EXCLUDED.events,
	active = EXCLUDED.active`

func (r *WebhookEndpointRepository) Upsert(ctx context.Context, endpoint webhook.Endpoint) error {
	events, err := sonic.Marshal(endpoint.Events)
	if err != nil {
		return fmt.Errorf("encode endpoint events: %w", err)
	}

	query, args, err := qb.InsertInto("webhook_endpoints").
		Columns("id", "tenant_id", "url", "secret", "events", "active", "consecutive_failures", "created_at").
		Values(endpoint.ID, endpoint.TenantID, endpoint.URL, endpoint.Secret, events,
			endpoint.Active, endpoint.ConsecutiveFailures, endpoint.CreatedAt).
		Suffix(endpointUpsertSuffix).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert endpoint query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert endpoint: %w", err)
	}
	return nil
}

func (r *WebhookEndpointRepository) GetByID(ctx context.Context, id string) (webhook.Endpoint, bool, error) {
	query, args, err := qb.Select("*").From("webhook_endpoints").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return webhook.Endpoint{}, false, fmt.Errorf("build get endpoint query: %w", err)
	}

	var row webhookEndpointTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return webhook.Endpoint{}, false, nil
		}
		return webhook.Endpoint{}, false, fmt.Errorf("get endpoint by id: %w", err)
	}

	e, err := row.toDomain()
	if err != nil {
		return webhook.Endpoint{}, false, err
	}
	return e, true, nil
}

func (r *WebhookEndpointRepository) ListByTenant(ctx context.Context, tenantID string) ([]webhook.Endpoint, error) {
	return r.list(ctx, qb.Select("*").From("webhook_endpoints").
		Where(qb.Eq("tenant_id", tenantID)).
		OrderBy("id"), webhook.EventType(""))
}

func (r *WebhookEndpointRepository) ListActive(ctx context.Context, tenantID string, event webhook.EventType) ([]webhook.Endpoint, error) {
	builder := qb.Select("*").From("webhook_endpoints").
		Where(qb.Eq("active", true)).
		OrderBy("id")
	if tenantID != "" {
		builder.Where(qb.Eq("tenant_id", tenantID))
	}
	return r.list(ctx, builder, event)
}

// Subscription filtering happens in Go; the events column is an opaque JSON
// array and the endpoint count per tenant stays small.
func (r *WebhookEndpointRepository) list(ctx context.Context, builder *qb.SelectBuilder, event webhook.EventType) ([]webhook.Endpoint, error) {
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list endpoints query: %w", err)
	}

	var rows []webhookEndpointTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}

	out := make([]webhook.Endpoint, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		if event != "" && !e.Subscribed(event) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

const recordOutcomeQuery = `
UPDATE webhook_endpoints SET
	consecutive_failures = CASE WHEN $2 THEN 0 ELSE consecutive_failures + 1 END,
	active = CASE WHEN $2 THEN active
		WHEN $3 > 0 AND consecutive_failures + 1 >= $3 THEN FALSE
		ELSE active END
WHERE id = $1`

func (r *WebhookEndpointRepository) RecordOutcome(ctx context.Context, id string, success bool, disableAfter int) error {
	if _, err := r.db.ExecContext(ctx, recordOutcomeQuery, id, success, disableAfter); err != nil {
		return fmt.Errorf("record endpoint outcome: %w", err)
	}
	return nil
}

type webhookDeliveryTableModel struct {
	ID            string       `db:"id"`
	EndpointID    string       `db:"endpoint_id"`
	TenantID      string       `db:"tenant_id"`
	Event         string       `db:"event"`
	SubjectID     int64        `db:"subject_id"`
	Payload       []byte       `db:"payload"`
	Status        string       `db:"status"`
	AttemptCount  int          `db:"attempt_count"`
	Attempts      []byte       `db:"attempts"`
	CreatedAt     time.Time    `db:"created_at"`
	LastAttemptAt sql.NullTime `db:"last_attempt_at"`
	NextRetryAt   sql.NullTime `db:"next_retry_at"`
	DeliveredAt   sql.NullTime `db:"delivered_at"`
}

func (m webhookDeliveryTableModel) toDomain() (webhook.Delivery, error) {
	out := webhook.Delivery{
		ID:            m.ID,
		EndpointID:    m.EndpointID,
		TenantID:      m.TenantID,
		Event:         webhook.EventType(m.Event),
		SubjectID:     m.SubjectID,
		Status:        webhook.DeliveryStatus(m.Status),
		AttemptCount:  m.AttemptCount,
		CreatedAt:     m.CreatedAt,
		LastAttemptAt: nullToTime(m.LastAttemptAt),
		NextRetryAt:   nullToTime(m.NextRetryAt),
		DeliveredAt:   nullToTime(m.DeliveredAt),
	}
	if len(m.Payload) > 0 {
		if err := sonic.Unmarshal(m.Payload, &out.Payload); err != nil {
			return webhook.Delivery{}, fmt.Errorf("decode delivery payload: %w", err)
		}
	}
	if len(m.Attempts) > 0 {
		if err := sonic.Unmarshal(m.Attempts, &out.Attempts); err != nil {
			return webhook.Delivery{}, fmt.Errorf("decode delivery attempts: %w", err)
		}
	}
	return out, nil
}

type WebhookDeliveryRepository struct {
	db *sqlx.DB
}

func NewWebhookDeliveryRepository(db *sqlx.DB) *WebhookDeliveryRepository {
	return &WebhookDeliveryRepository{db: db}
}

func (r *WebhookDeliveryRepository) Insert(ctx context.Context, delivery webhook.Delivery) error {
	payload, attempts, err := encodeDeliveryBlobs(delivery)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertInto("webhook_deliveries").
		Columns("id", "endpoint_id", "tenant_id", "event", "subject_id", "payload",
			"status", "attempt_count", "attempts", "created_at",
			"last_attempt_at", "next_retry_at", "delivered_at").
		Values(delivery.ID, delivery.EndpointID, delivery.TenantID, string(delivery.Event),
			delivery.SubjectID, payload, string(delivery.Status), delivery.AttemptCount, attempts,
			delivery.CreatedAt, timeToNull(delivery.LastAttemptAt),
			timeToNull(delivery.NextRetryAt), timeToNull(delivery.DeliveredAt)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert delivery query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (r *WebhookDeliveryRepository) Update(ctx context.Context, delivery webhook.Delivery) error {
	attempts, err := sonic.Marshal(delivery.Attempts)
	if err != nil {
		return fmt.Errorf("encode delivery attempts: %w", err)
	}

	query, args, err := qb.Update("webhook_deliveries").
		Set("status", string(delivery.Status)).
		Set("attempt_count", delivery.AttemptCount).
		Set("attempts", attempts).
		Set("last_attempt_at", timeToNull(delivery.LastAttemptAt)).
		Set("next_retry_at", timeToNull(delivery.NextRetryAt)).
		Set("delivered_at", timeToNull(delivery.DeliveredAt)).
		Where(qb.Eq("id", delivery.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update delivery query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	return nil
}

func (r *WebhookDeliveryRepository) GetByID(ctx context.Context, id string) (webhook.Delivery, bool, error) {
	query, args, err := qb.Select("*").From("webhook_deliveries").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return webhook.Delivery{}, false, fmt.Errorf("build get delivery query: %w", err)
	}

	var row webhookDeliveryTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return webhook.Delivery{}, false, nil
		}
		return webhook.Delivery{}, false, fmt.Errorf("get delivery by id: %w", err)
	}

	d, err := row.toDomain()
	if err != nil {
		return webhook.Delivery{}, false, err
	}
	return d, true, nil
}

func (r *WebhookDeliveryRepository) ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]webhook.Delivery, error) {
	return r.list(ctx, qb.Eq("endpoint_id", endpointID), limit)
}

func (r *WebhookDeliveryRepository) ListByStatus(ctx context.Context, status webhook.DeliveryStatus, limit int) ([]webhook.Delivery, error) {
	return r.list(ctx, qb.Eq("status", string(status)), limit)
}

func (r *WebhookDeliveryRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := qb.DeleteFrom("webhook_deliveries").
		Where(qb.In("status", []any{string(webhook.StatusDelivered), string(webhook.StatusFailed)})).
		Where(qb.Expr("created_at < ?", cutoff)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build delete terminal deliveries query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete terminal deliveries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete terminal deliveries rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *WebhookDeliveryRepository) list(ctx context.Context, cond qb.Condition, limit int) ([]webhook.Delivery, error) {
	builder := qb.Select("*").From("webhook_deliveries").
		Where(cond).
		OrderBy("created_at DESC", "id")
	if limit > 0 {
		builder.Limit(limit)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list deliveries query: %w", err)
	}

	var rows []webhookDeliveryTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	out := make([]webhook.Delivery, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func encodeDeliveryBlobs(delivery webhook.Delivery) ([]byte, []byte, error) {
	payload, err := sonic.Marshal(delivery.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encode delivery payload: %w", err)
	}
	attempts, err := sonic.Marshal(delivery.Attempts)
	if err != nil {
		return nil, nil, fmt.Errorf("encode delivery attempts: %w", err)
	}
	return payload, attempts, nil
}
