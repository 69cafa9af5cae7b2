package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/scoutpulse/scout-engine/internal/domain/player"
	qb "github.com/scoutpulse/scout-engine/internal/platform/querybuilder"
)

type playerTableModel struct {
	ID                int64        `db:"id"`
	Name              string       `db:"name"`
	Position          string       `db:"position"`
	Age               int          `db:"age"`
	CurrentTeam       string       `db:"current_team"`
	League            string       `db:"league"`
	MarketValue       float64      `db:"market_value"`
	LastTransferValue float64      `db:"last_transfer_value"`
	ReleaseClause     float64      `db:"release_clause"`
	OverallRating     float64      `db:"overall_rating"`
	PotentialRating   float64      `db:"potential_rating"`
	GoalsSeason       int          `db:"goals_season"`
	AssistsSeason     int          `db:"assists_season"`
	AppearancesSeason int          `db:"appearances_season"`
	DaysInjuredSeason int          `db:"days_injured_season"`
	Injured           bool         `db:"injured"`
	LoanListed        bool         `db:"loan_listed"`
	TransferRumor     bool         `db:"transfer_rumor"`
	ContractEndsAt    sql.NullTime `db:"contract_ends_at"`
	Trend             string       `db:"trend"`
	FetchedAt         sql.NullTime `db:"fetched_at"`
}

func (m playerTableModel) toDomain() player.Snapshot {
	return player.Snapshot{
		ID:                m.ID,
		Name:              m.Name,
		Position:          m.Position,
		Age:               m.Age,
		CurrentTeam:       m.CurrentTeam,
		League:            m.League,
		MarketValue:       m.MarketValue,
		LastTransferValue: m.LastTransferValue,
		ReleaseClause:     m.ReleaseClause,
		OverallRating:     m.OverallRating,
		PotentialRating:   m.PotentialRating,
		GoalsSeason:       m.GoalsSeason,
		AssistsSeason:     m.AssistsSeason,
		AppearancesSeason: m.AppearancesSeason,
		DaysInjuredSeason: m.DaysInjuredSeason,
		Injured:           m.Injured,
		LoanListed:        m.LoanListed,
		TransferRumor:     m.TransferRumor,
		ContractEndsAt:    nullTimeToPtr(m.ContractEndsAt),
		Trend:             player.MarketTrend(m.Trend),
		FetchedAt:         nullToTime(m.FetchedAt),
	}
}

type PlayerRepository struct {
	db *sqlx.DB
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) GetByID(ctx context.Context, id int64) (player.Snapshot, bool, error) {
	query, args, err := qb.Select("*").From("players").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return player.Snapshot{}, false, fmt.Errorf("build get player query: %w", err)
	}

	var row playerTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return player.Snapshot{}, false, nil
		}
		return player.Snapshot{}, false, fmt.Errorf("get player by id: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *PlayerRepository) List(ctx context.Context) ([]player.Snapshot, error) {
	query, args, err := qb.Select("*").From("players").
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list players query: %w", err)
	}

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	out := make([]player.Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

const playerUpsertSuffix = `ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	position = EXCLUDED.position,
	age = EXCLUDED.age,
	current_team = EXCLUDED.current_team,
	league = EXCLUDED.league,
	market_value = EXCLUDED.market_value,
	last_transfer_value = EXCLUDED.last_transfer_value,
	release_clause = EXCLUDED.release_clause,
	overall_rating = EXCLUDED.overall_rating,
	potential_rating = EXCLUDED.potential_rating,
	goals_season = EXCLUDED.goals_season,
	assists_season = EXCLUDED.assists_season,
	appearances_season = EXCLUDED.appearances_season,
	days_injured_season = EXCLUDED.days_injured_season,
	injured = EXCLUDED.injured,
	loan_listed = EXCLUDED.loan_listed,
	transfer_rumor = EXCLUDED.transfer_rumor,
	contract_ends_at = EXCLUDED.contract_ends_at,
	trend = EXCLUDED.trend,
	fetched_at = EXCLUDED.fetched_at`

func (r *PlayerRepository) Upsert(ctx context.Context, snapshots []player.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	builder := qb.InsertInto("players").
		Columns(
			"id", "name", "position", "age", "current_team", "league",
			"market_value", "last_transfer_value", "release_clause",
			"overall_rating", "potential_rating",
			"goals_season", "assists_season", "appearances_season", "days_injured_season",
			"injured", "loan_listed", "transfer_rumor",
			"contract_ends_at", "trend", "fetched_at",
		).
		Suffix(playerUpsertSuffix)

	rows := 0
	for _, s := range snapshots {
		if s.ID <= 0 {
			continue
		}
		rows++
		builder.Values(
			s.ID, s.Name, s.Position, s.Age, s.CurrentTeam, s.League,
			s.MarketValue, s.LastTransferValue, s.ReleaseClause,
			s.OverallRating, s.PotentialRating,
			s.GoalsSeason, s.AssistsSeason, s.AppearancesSeason, s.DaysInjuredSeason,
			s.Injured, s.LoanListed, s.TransferRumor,
			ptrToNullTime(s.ContractEndsAt), string(s.Trend), timeToNull(s.FetchedAt),
		)
	}

	if rows == 0 {
		return nil
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert players query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert players: %w", err)
	}
	return nil
}
