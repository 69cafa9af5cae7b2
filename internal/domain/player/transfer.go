package player

import "time"

// Transfer is a completed or strongly-rumored move reported by the provider.
type Transfer struct {
	PlayerID   int64     `json:"player_id" db:"player_id"`
	PlayerName string    `json:"player_name" db:"player_name"`
	FromTeam   string    `json:"from_team" db:"from_team"`
	ToTeam     string    `json:"to_team" db:"to_team"`
	Fee        float64   `json:"fee" db:"fee"`
	Rumor      bool      `json:"rumor" db:"rumor"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}
