package postgres

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/scoutpulse/scout-engine/internal/domain/alert"
	qb "github.com/scoutpulse/scout-engine/internal/platform/querybuilder"
)

type alertTableModel struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Rule      string    `db:"rule"`
	SubjectID int64     `db:"subject_id"`
	Priority  string    `db:"priority"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	Read      bool      `db:"read"`
	Acted     bool      `db:"acted"`
}

func (m alertTableModel) toDomain() (alert.Alert, error) {
	out := alert.Alert{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Rule:      alert.RuleType(m.Rule),
		SubjectID: m.SubjectID,
		Priority:  alert.Priority(m.Priority),
		Title:     m.Title,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
		Read:      m.Read,
		Acted:     m.Acted,
	}
	if len(m.Payload) > 0 {
		if err := sonic.Unmarshal(m.Payload, &out.Payload); err != nil {
			return alert.Alert{}, fmt.Errorf("decode alert payload: %w", err)
		}
	}
	return out, nil
}

// priorityRankExpr orders listings most-pressing first, mirroring the rank
// the domain assigns to each priority level.
const priorityRankExpr = `CASE priority
	WHEN 'critical' THEN 0
	WHEN 'high' THEN 1
	WHEN 'medium' THEN 2
	ELSE 3
END`

type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// insertIfAbsentQuery leans on the unique partial index over live
// (tenant, rule, subject) keys: when two evaluation passes race on the same
// key, the index lets exactly one row land and the loser reports zero rows.
const insertIfAbsentQuery = `
INSERT INTO alerts (id, tenant_id, rule, subject_id, priority, title, message, payload, created_at, expires_at, read, acted)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (tenant_id, rule, subject_id) WHERE acted = FALSE DO NOTHING`

// clearExpiredDuplicateQuery removes rows that no longer count as live but
// still occupy the dedup key until the next sweep.
const clearExpiredDuplicateQuery = `
DELETE FROM alerts
WHERE tenant_id = $1 AND rule = $2 AND subject_id = $3
  AND acted = FALSE AND expires_at <= $4`

func (r *AlertRepository) InsertIfAbsent(ctx context.Context, a alert.Alert) (bool, error) {
	payload, err := sonic.Marshal(a.Payload)
	if err != nil {
		return false, fmt.Errorf("encode alert payload: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin insert alert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, clearExpiredDuplicateQuery,
		a.TenantID, string(a.Rule), a.SubjectID, a.CreatedAt,
	); err != nil {
		return false, fmt.Errorf("clear expired alerts for dedup key: %w", err)
	}

	result, err := tx.ExecContext(ctx, insertIfAbsentQuery,
		a.ID, a.TenantID, string(a.Rule), a.SubjectID, string(a.Priority),
		a.Title, a.Message, payload, a.CreatedAt, a.ExpiresAt, a.Read, a.Acted,
	)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alert rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit insert alert tx: %w", err)
	}
	return affected > 0, nil
}

func (r *AlertRepository) List(ctx context.Context, tenantID string, f alert.Filter) ([]alert.Alert, error) {
	builder := qb.Select("*").From("alerts").
		Where(qb.Eq("tenant_id", tenantID)).
		OrderBy(priorityRankExpr, "created_at DESC", "id")
	if f.Rule != "" {
		builder.Where(qb.Eq("rule", string(f.Rule)))
	}
	if f.UnreadOnly {
		builder.Where(qb.Eq("read", false))
	}
	if f.Limit > 0 {
		builder.Limit(f.Limit)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list alerts query: %w", err)
	}

	var rows []alertTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	out := make([]alert.Alert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (alert.Alert, bool, error) {
	query, args, err := qb.Select("*").From("alerts").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return alert.Alert{}, false, fmt.Errorf("build get alert query: %w", err)
	}

	var row alertTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return alert.Alert{}, false, nil
		}
		return alert.Alert{}, false, fmt.Errorf("get alert by id: %w", err)
	}

	a, err := row.toDomain()
	if err != nil {
		return alert.Alert{}, false, err
	}
	return a, true, nil
}

func (r *AlertRepository) MarkRead(ctx context.Context, id string) error {
	return r.setFlag(ctx, id, "read")
}

func (r *AlertRepository) MarkActed(ctx context.Context, id string) error {
	return r.setFlag(ctx, id, "acted")
}

func (r *AlertRepository) setFlag(ctx context.Context, id, column string) error {
	query, args, err := qb.Update("alerts").
		Set(column, true).
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark %s query: %w", column, err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark alert %s: %w", column, err)
	}
	return nil
}

func (r *AlertRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query, args, err := qb.DeleteFrom("alerts").
		Where(qb.Expr("expires_at <= ?", now)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build delete expired alerts query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired alerts: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired alerts rows affected: %w", err)
	}
	return int(affected), nil
}
