package upstream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/scoutpulse/scout-engine/internal/domain/player"
)

type playerEnvelope struct {
	Data playerPayload `json:"data"`
}

type playersEnvelope struct {
	Data []playerPayload `json:"data"`
}

type playerPayload struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Position          string  `json:"position"`
	Age               int     `json:"age"`
	CurrentTeam       string  `json:"current_team"`
	League            string  `json:"league"`
	MarketValue       float64 `json:"market_value"`
	LastTransferValue float64 `json:"last_transfer_value"`
	ReleaseClause     float64 `json:"release_clause"`
	OverallRating     float64 `json:"overall_rating"`
	PotentialRating   float64 `json:"potential_rating"`
	GoalsSeason       int     `json:"goals_season"`
	AssistsSeason     int     `json:"assists_season"`
	AppearancesSeason int     `json:"appearances_season"`
	DaysInjuredSeason int     `json:"days_injured_season"`
	Injured           bool    `json:"injured"`
	LoanListed        bool    `json:"loan_listed"`
	TransferRumor     bool    `json:"transfer_rumor"`
	ContractEndsAt    string  `json:"contract_ends_at"`
	MarketTrend       string  `json:"market_trend"`
}

type transfersEnvelope struct {
	Data []transferPayload `json:"data"`
}

type transferPayload struct {
	PlayerID   int64   `json:"player_id"`
	PlayerName string  `json:"player_name"`
	FromTeam   string  `json:"from_team"`
	ToTeam     string  `json:"to_team"`
	Fee        float64 `json:"fee"`
	Rumor      bool    `json:"rumor"`
	OccurredAt string  `json:"occurred_at"`
}

// FetchPlayer returns the current snapshot for one player.
func (c *Client) FetchPlayer(ctx context.Context, playerID int64) (player.Snapshot, error) {
	if playerID <= 0 {
		return player.Snapshot{}, fmt.Errorf("player id must be greater than zero")
	}

	raw, err := c.Fetch(ctx, ClassPlayers, "/players/"+strconv.FormatInt(playerID, 10), nil)
	if err != nil {
		return player.Snapshot{}, fmt.Errorf("fetch player id=%d: %w", playerID, err)
	}

	var envelope playerEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return player.Snapshot{}, fmt.Errorf("decode player payload: %w", err)
	}
	return mapPlayerPayload(envelope.Data, c.now()), nil
}

// FetchPlayerStats refreshes season statistics for one player. The provider
// serves stats on a separate endpoint class with its own rate budget.
func (c *Client) FetchPlayerStats(ctx context.Context, playerID int64) (player.Snapshot, error) {
	if playerID <= 0 {
		return player.Snapshot{}, fmt.Errorf("player id must be greater than zero")
	}

	raw, err := c.Fetch(ctx, ClassStats, "/players/"+strconv.FormatInt(playerID, 10)+"/stats", nil)
	if err != nil {
		return player.Snapshot{}, fmt.Errorf("fetch player stats id=%d: %w", playerID, err)
	}

	var envelope playerEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return player.Snapshot{}, fmt.Errorf("decode player stats payload: %w", err)
	}
	return mapPlayerPayload(envelope.Data, c.now()), nil
}

// FetchMarketValues returns current market snapshots for a set of players.
func (c *Client) FetchMarketValues(ctx context.Context, playerIDs []int64) ([]player.Snapshot, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	idValues := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		if id <= 0 {
			continue
		}
		idValues = append(idValues, strconv.FormatInt(id, 10))
	}
	query := map[string]string{"ids": strings.Join(idValues, ",")}

	raw, err := c.Fetch(ctx, ClassMarket, "/market/values", query)
	if err != nil {
		return nil, fmt.Errorf("fetch market values: %w", err)
	}

	var envelope playersEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode market values payload: %w", err)
	}

	out := make([]player.Snapshot, 0, len(envelope.Data))
	fetchedAt := c.now()
	for _, item := range envelope.Data {
		if item.ID <= 0 {
			continue
		}
		out = append(out, mapPlayerPayload(item, fetchedAt))
	}
	return out, nil
}

// FetchTransfers returns transfer events recorded since the given instant.
func (c *Client) FetchTransfers(ctx context.Context, since time.Time) ([]player.Transfer, error) {
	query := map[string]string{}
	if !since.IsZero() {
		query["since"] = since.UTC().Format(time.RFC3339)
	}

	raw, err := c.Fetch(ctx, ClassTransfers, "/transfers", query)
	if err != nil {
		return nil, fmt.Errorf("fetch transfers: %w", err)
	}

	var envelope transfersEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode transfers payload: %w", err)
	}

	out := make([]player.Transfer, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		if item.PlayerID <= 0 {
			continue
		}
		out = append(out, player.Transfer{
			PlayerID:   item.PlayerID,
			PlayerName: strings.TrimSpace(item.PlayerName),
			FromTeam:   strings.TrimSpace(item.FromTeam),
			ToTeam:     strings.TrimSpace(item.ToTeam),
			Fee:        item.Fee,
			Rumor:      item.Rumor,
			OccurredAt: parseProviderTime(item.OccurredAt),
		})
	}
	return out, nil
}

func mapPlayerPayload(item playerPayload, fetchedAt time.Time) player.Snapshot {
	snapshot := player.Snapshot{
		ID:                item.ID,
		Name:              strings.TrimSpace(item.Name),
		Position:          strings.TrimSpace(item.Position),
		Age:               item.Age,
		CurrentTeam:       strings.TrimSpace(item.CurrentTeam),
		League:            strings.TrimSpace(item.League),
		MarketValue:       item.MarketValue,
		LastTransferValue: item.LastTransferValue,
		ReleaseClause:     item.ReleaseClause,
		OverallRating:     item.OverallRating,
		PotentialRating:   item.PotentialRating,
		GoalsSeason:       item.GoalsSeason,
		AssistsSeason:     item.AssistsSeason,
		AppearancesSeason: item.AppearancesSeason,
		DaysInjuredSeason: item.DaysInjuredSeason,
		Injured:           item.Injured,
		LoanListed:        item.LoanListed,
		TransferRumor:     item.TransferRumor,
		Trend:             mapMarketTrend(item.MarketTrend),
		FetchedAt:         fetchedAt,
	}
	if ends := parseProviderTime(item.ContractEndsAt); !ends.IsZero() {
		snapshot.ContractEndsAt = &ends
	}
	return snapshot
}

func mapMarketTrend(value string) player.MarketTrend {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "rising", "up":
		return player.TrendRising
	case "falling", "down":
		return player.TrendFalling
	default:
		return player.TrendStable
	}
}

func parseProviderTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
