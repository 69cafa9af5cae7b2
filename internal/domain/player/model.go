package player

import "time"

// MarketTrend is the provider's coarse direction tag for a player's value.
type MarketTrend string

const (
	TrendRising  MarketTrend = "rising"
	TrendStable  MarketTrend = "stable"
	TrendFalling MarketTrend = "falling"
)

// Snapshot is one provider observation of a player's market and form state.
// Monetary fields are in millions of euros, ratings on a 0-10 scale.
type Snapshot struct {
	ID                int64       `json:"id" db:"id"`
	Name              string      `json:"name" db:"name"`
	Position          string      `json:"position" db:"position"`
	Age               int         `json:"age" db:"age"`
	CurrentTeam       string      `json:"current_team" db:"current_team"`
	League            string      `json:"league" db:"league"`
	MarketValue       float64     `json:"market_value" db:"market_value"`
	LastTransferValue float64     `json:"last_transfer_value" db:"last_transfer_value"`
	ReleaseClause     float64     `json:"release_clause" db:"release_clause"`
	OverallRating     float64     `json:"overall_rating" db:"overall_rating"`
	PotentialRating   float64     `json:"potential_rating" db:"potential_rating"`
	GoalsSeason       int         `json:"goals_season" db:"goals_season"`
	AssistsSeason     int         `json:"assists_season" db:"assists_season"`
	AppearancesSeason int         `json:"appearances_season" db:"appearances_season"`
	DaysInjuredSeason int         `json:"days_injured_season" db:"days_injured_season"`
	Injured           bool        `json:"injured" db:"injured"`
	LoanListed        bool        `json:"loan_listed" db:"loan_listed"`
	TransferRumor     bool        `json:"transfer_rumor" db:"transfer_rumor"`
	ContractEndsAt    *time.Time  `json:"contract_ends_at,omitempty" db:"contract_ends_at"`
	Trend             MarketTrend `json:"trend" db:"trend"`
	FetchedAt         time.Time   `json:"fetched_at" db:"fetched_at"`
}

// ContractMonthsLeft reports whole months until the contract ends, or -1 when
// no contract end date is known.
func (s Snapshot) ContractMonthsLeft(now time.Time) int {
	if s.ContractEndsAt == nil {
		return -1
	}
	days := int(s.ContractEndsAt.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / 30
}

// FreeAgent reports whether the player currently has no contract.
func (s Snapshot) FreeAgent(now time.Time) bool {
	return s.ContractEndsAt != nil && s.ContractEndsAt.Before(now)
}
