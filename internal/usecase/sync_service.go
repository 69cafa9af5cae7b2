package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/player"
	"github.com/scoutpulse/scout-engine/internal/domain/webhook"
	"github.com/scoutpulse/scout-engine/internal/platform/cache"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
	"github.com/sourcegraph/conc/pool"
)

// ScoutDataProvider is the upstream the sync service pulls from.
type ScoutDataProvider interface {
	FetchPlayer(ctx context.Context, playerID int64) (player.Snapshot, error)
	FetchPlayerStats(ctx context.Context, playerID int64) (player.Snapshot, error)
	FetchMarketValues(ctx context.Context, playerIDs []int64) ([]player.Snapshot, error)
	FetchTransfers(ctx context.Context, since time.Time) ([]player.Transfer, error)
}

// TenantSource lists the tenants a sync pass evaluates rules for.
type TenantSource interface {
	Tenants(ctx context.Context) ([]string, error)
}

type SyncResult struct {
	Players       int       `json:"players"`
	AlertsCreated int       `json:"alerts_created"`
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
}

type SyncService struct {
	provider    ScoutDataProvider
	players     player.Repository
	cacheStore  *cache.Store
	alerts      *AlertService
	tenants     TenantSource
	publisher   AlertPublisher
	logger      *logging.Logger
	warmWorkers int
	now         func() time.Time
}

func NewSyncService(
	provider ScoutDataProvider,
	players player.Repository,
	cacheStore *cache.Store,
	alerts *AlertService,
	tenants TenantSource,
	publisher AlertPublisher,
	warmWorkers int,
	logger *logging.Logger,
) *SyncService {
	if logger == nil {
		logger = logging.Default()
	}
	if warmWorkers <= 0 {
		warmWorkers = 4
	}

	return &SyncService{
		provider:    provider,
		players:     players,
		cacheStore:  cacheStore,
		alerts:      alerts,
		tenants:     tenants,
		publisher:   publisher,
		logger:      logger,
		warmWorkers: warmWorkers,
		now:         time.Now,
	}
}

// PlayerCacheKey is the cache key for one player snapshot.
func PlayerCacheKey(playerID int64) string {
	return "player:" + strconv.FormatInt(playerID, 10)
}

// Player serves one snapshot, cache first, provider on miss.
func (s *SyncService) Player(ctx context.Context, playerID int64) (player.Snapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "SyncService.Player")
	defer span.End()

	if playerID <= 0 {
		return player.Snapshot{}, fmt.Errorf("%w: player id must be greater than zero", ErrInvalidInput)
	}

	value, err := s.cacheStore.GetOrLoad(ctx, PlayerCacheKey(playerID), cache.ClassPlayer, func(ctx context.Context) (any, error) {
		snapshot, err := s.provider.FetchPlayer(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if err := s.players.Upsert(ctx, []player.Snapshot{snapshot}); err != nil {
			s.logger.WarnContext(ctx, "player persist failed", "player_id", playerID, "error", err)
		}
		return snapshot, nil
	})
	if err != nil {
		return player.Snapshot{}, err
	}

	snapshot, ok := value.(player.Snapshot)
	if !ok {
		return player.Snapshot{}, fmt.Errorf("unexpected cache payload type %T", value)
	}
	return snapshot, nil
}

// SyncAll refreshes every tracked player from the provider, re-evaluates
// alert rules against the fresh snapshots, and announces completion.
func (s *SyncService) SyncAll(ctx context.Context) (SyncResult, error) {
	ctx, span := startUsecaseSpan(ctx, "SyncService.SyncAll")
	defer span.End()

	startedAt := s.now()
	tracked, err := s.players.List(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list tracked players: %w", err)
	}

	fresh := make([]player.Snapshot, 0, len(tracked))
	for _, existing := range tracked {
		snapshot, err := s.provider.FetchPlayer(ctx, existing.ID)
		if err != nil {
			if ctx.Err() != nil {
				return SyncResult{}, ctx.Err()
			}
			s.logger.WarnContext(ctx, "player refresh failed", "player_id", existing.ID, "error", err)
			continue
		}
		fresh = append(fresh, snapshot)
		s.cacheStore.Put(ctx, PlayerCacheKey(snapshot.ID), snapshot, cache.ClassPlayer)
	}

	if err := s.players.Upsert(ctx, fresh); err != nil {
		return SyncResult{}, fmt.Errorf("persist refreshed players: %w", err)
	}

	created, err := s.alerts.EvaluateAll(ctx, fresh)
	if err != nil {
		return SyncResult{}, fmt.Errorf("evaluate alerts: %w", err)
	}

	result := SyncResult{
		Players:       len(fresh),
		AlertsCreated: created,
		StartedAt:     startedAt,
		Duration:      s.now().Sub(startedAt).String(),
	}
	s.announceSyncCompleted(ctx, result)
	s.logger.InfoContext(ctx, "daily sync completed",
		"players", result.Players, "alerts_created", result.AlertsCreated, "duration", result.Duration)
	return result, nil
}

func (s *SyncService) announceSyncCompleted(ctx context.Context, result SyncResult) {
	if s.publisher == nil || s.tenants == nil {
		return
	}

	tenants, err := s.tenants.Tenants(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "tenant listing for sync announcement failed", "error", err)
		return
	}
	payload := map[string]any{
		"players":        result.Players,
		"alerts_created": result.AlertsCreated,
		"started_at":     result.StartedAt.UTC().Format(time.RFC3339),
		"duration":       result.Duration,
	}
	for _, tenantID := range tenants {
		if err := s.publisher.Publish(ctx, tenantID, webhook.EventSyncCompleted, 0, payload); err != nil {
			s.logger.WarnContext(ctx, "sync announcement failed", "tenant_id", tenantID, "error", err)
		}
	}
}

// CheckTransfers pulls recent transfer events, folds them into the tracked
// snapshots, and re-runs the rules over the players that moved.
func (s *SyncService) CheckTransfers(ctx context.Context, since time.Time) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "SyncService.CheckTransfers")
	defer span.End()

	transfers, err := s.provider.FetchTransfers(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("fetch transfers: %w", err)
	}
	if len(transfers) == 0 {
		return 0, nil
	}

	touched := make([]player.Snapshot, 0, len(transfers))
	for _, transfer := range transfers {
		snapshot, found, err := s.players.GetByID(ctx, transfer.PlayerID)
		if err != nil {
			s.logger.WarnContext(ctx, "transfer subject lookup failed", "player_id", transfer.PlayerID, "error", err)
			continue
		}
		if !found {
			continue
		}

		if transfer.Rumor {
			snapshot.TransferRumor = true
		} else {
			snapshot.CurrentTeam = transfer.ToTeam
			snapshot.TransferRumor = false
			if transfer.Fee > 0 {
				snapshot.LastTransferValue = transfer.Fee
			}
		}
		snapshot.FetchedAt = s.now()
		touched = append(touched, snapshot)
		s.cacheStore.Put(ctx, PlayerCacheKey(snapshot.ID), snapshot, cache.ClassPlayer)
	}

	if err := s.players.Upsert(ctx, touched); err != nil {
		return 0, fmt.Errorf("persist transfer updates: %w", err)
	}

	created, err := s.alerts.EvaluateAll(ctx, touched)
	if err != nil {
		return 0, fmt.Errorf("evaluate alerts on transfers: %w", err)
	}
	return created, nil
}

// RefreshMarketTrends re-prices all tracked players in one market call and
// fires the value-driven rules on the result.
func (s *SyncService) RefreshMarketTrends(ctx context.Context) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "SyncService.RefreshMarketTrends")
	defer span.End()

	tracked, err := s.players.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tracked players: %w", err)
	}
	if len(tracked) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(tracked))
	byID := make(map[int64]player.Snapshot, len(tracked))
	for _, snapshot := range tracked {
		ids = append(ids, snapshot.ID)
		byID[snapshot.ID] = snapshot
	}

	priced, err := s.provider.FetchMarketValues(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("fetch market values: %w", err)
	}

	updated := make([]player.Snapshot, 0, len(priced))
	for _, quote := range priced {
		snapshot, ok := byID[quote.ID]
		if !ok {
			continue
		}
		snapshot.MarketValue = quote.MarketValue
		snapshot.ReleaseClause = quote.ReleaseClause
		snapshot.Trend = quote.Trend
		snapshot.FetchedAt = s.now()
		updated = append(updated, snapshot)
		s.cacheStore.Put(ctx, PlayerCacheKey(snapshot.ID), snapshot, cache.ClassMarket)
	}

	if err := s.players.Upsert(ctx, updated); err != nil {
		return 0, fmt.Errorf("persist market updates: %w", err)
	}

	created, err := s.alerts.EvaluateAll(ctx, updated)
	if err != nil {
		return 0, fmt.Errorf("evaluate alerts on market refresh: %w", err)
	}
	return created, nil
}

// Warm preloads player snapshots for the given cache keys on a bounded
// worker pool. A failing key is logged and skipped, never aborting the batch.
func (s *SyncService) Warm(ctx context.Context, keys []string) int {
	ctx, span := startUsecaseSpan(ctx, "SyncService.Warm")
	defer span.End()

	warmed := 0
	workers := pool.New().WithMaxGoroutines(s.warmWorkers)
	results := make(chan bool, len(keys))
	for _, key := range keys {
		key := key
		workers.Go(func() {
			playerID, ok := parsePlayerCacheKey(key)
			if !ok {
				s.logger.WarnContext(ctx, "unwarmable cache key", "key", key)
				results <- false
				return
			}
			if _, err := s.Player(ctx, playerID); err != nil {
				s.logger.WarnContext(ctx, "cache warm failed", "key", key, "error", err)
				results <- false
				return
			}
			results <- true
		})
	}
	workers.Wait()
	close(results)
	for ok := range results {
		if ok {
			warmed++
		}
	}
	return warmed
}

// WarmTracked warms every player already in the repository.
func (s *SyncService) WarmTracked(ctx context.Context) (int, error) {
	tracked, err := s.players.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tracked players: %w", err)
	}

	keys := make([]string, 0, len(tracked))
	for _, snapshot := range tracked {
		keys = append(keys, PlayerCacheKey(snapshot.ID))
	}
	return s.Warm(ctx, keys), nil
}

func parsePlayerCacheKey(key string) (int64, bool) {
	raw, ok := strings.CutPrefix(key, "player:")
	if !ok {
		return 0, false
	}
	playerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || playerID <= 0 {
		return 0, false
	}
	return playerID, true
}
