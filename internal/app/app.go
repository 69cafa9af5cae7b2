package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/scoutpulse/scout-engine/internal/config"
	"github.com/scoutpulse/scout-engine/internal/domain/alert"
	"github.com/scoutpulse/scout-engine/internal/domain/player"
	"github.com/scoutpulse/scout-engine/internal/domain/schedule"
	"github.com/scoutpulse/scout-engine/internal/domain/webhook"
	"github.com/scoutpulse/scout-engine/internal/infrastructure/repository/memory"
	"github.com/scoutpulse/scout-engine/internal/infrastructure/repository/postgres"
	"github.com/scoutpulse/scout-engine/internal/interfaces/httpapi"
	"github.com/scoutpulse/scout-engine/internal/platform/cache"
	idgen "github.com/scoutpulse/scout-engine/internal/platform/id"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
	"github.com/scoutpulse/scout-engine/internal/platform/resilience"
	"github.com/scoutpulse/scout-engine/internal/scheduler"
	"github.com/scoutpulse/scout-engine/internal/upstream"
	"github.com/scoutpulse/scout-engine/internal/usecase"
)

// App owns every long-lived component: the HTTP server, the background
// scheduler, and the webhook delivery pool.
type App struct {
	Server     *http.Server
	Scheduler  *scheduler.Scheduler
	Dispatcher *usecase.WebhookDispatcher

	db     *sqlx.DB
	logger *logging.Logger
}

type repositories struct {
	players   player.Repository
	alerts    alert.Repository
	configs   alert.ConfigRepository
	endpoints webhook.EndpointRepository
	delivs    webhook.DeliveryRepository
	runs      schedule.RunRepository
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	repos, db, err := buildRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	cacheStore := cache.NewStore(map[cache.Class]time.Duration{
		cache.ClassPlayer:  cfg.CacheTTLPlayer,
		cache.ClassStats:   cfg.CacheTTLStats,
		cache.ClassMarket:  cfg.CacheTTLMarket,
		cache.ClassDerived: cfg.CacheTTLDerived,
	})

	upstreamClient := upstream.NewClient(upstream.ClientConfig{
		BaseURL:      cfg.ProviderBaseURL,
		APIKey:       cfg.ProviderAPIKey,
		Timeout:      cfg.ProviderTimeout,
		MaxRetries:   cfg.ProviderMaxRetries,
		PaceInterval: cfg.ProviderPaceInterval,
		PaceBurst:    cfg.ProviderPaceBurst,
		Backoff: resilience.Backoff{
			Base: cfg.ProviderBackoffBase,
			Cap:  cfg.ProviderBackoffCap,
		},
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: cfg.ProviderCircuitFailureCount,
			Cooldown:         cfg.ProviderCircuitCooldown,
			HalfOpenProbes:   cfg.ProviderCircuitHalfOpenProbes,
		},
		Logger: logger,
	})

	dispatcher, err := usecase.NewWebhookDispatcher(repos.endpoints, repos.delivs, usecase.WebhookDispatcherConfig{
		Workers:      cfg.WebhookWorkers,
		MaxAttempts:  cfg.WebhookMaxAttempts,
		DisableAfter: cfg.WebhookDisableAfter,
		Timeout:      cfg.WebhookTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build webhook dispatcher: %w", err)
	}

	alertService := usecase.NewAlertService(repos.alerts, repos.configs, idgen.NewUUIDGenerator(), dispatcher, logger)
	syncService := usecase.NewSyncService(
		upstreamClient,
		repos.players,
		cacheStore,
		alertService,
		repos.configs,
		dispatcher,
		cfg.WarmWorkers,
		logger,
	)

	sched := scheduler.New(repos.runs, idgen.NewUUIDGenerator(), cfg.SchedulerTick, logger)
	if err := registerJobs(sched, cfg, syncService, alertService, dispatcher, cacheStore, repos, logger); err != nil {
		return nil, err
	}

	// Deliveries persisted by a previous process that never reached a
	// terminal state are picked up again before traffic starts.
	if recovered, err := dispatcher.RecoverPending(context.Background(), 0); err != nil {
		logger.Warn("recover pending deliveries", "error", err)
	} else if recovered > 0 {
		logger.Info("recovered pending deliveries", "count", recovered)
	}

	handler := httpapi.NewHandler(syncService, alertService, dispatcher, sched, cacheStore, upstreamClient, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalAPIToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:     server,
		Scheduler:  sched,
		Dispatcher: dispatcher,
		db:         db,
		logger:     logger,
	}, nil
}

// Close releases the delivery pool and the database handle. The HTTP server
// is shut down separately so in-flight requests get a deadline.
func (a *App) Close() {
	a.Dispatcher.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}

func buildRepositories(cfg config.Config, logger *logging.Logger) (repositories, *sqlx.DB, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("storage backend", "kind", "memory")
		return repositories{
			players:   memory.NewPlayerRepository(nil),
			alerts:    memory.NewAlertRepository(),
			configs:   memory.NewAlertConfigRepository(),
			endpoints: memory.NewWebhookEndpointRepository(),
			delivs:    memory.NewWebhookDeliveryRepository(),
			runs:      memory.NewScheduleRunRepository(),
		}, nil, nil
	}

	db, err := postgres.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return repositories{}, nil, fmt.Errorf("connect database: %w", err)
	}

	logger.Info("storage backend", "kind", "postgres", "max_open_conns", cfg.DBMaxOpenConns)
	return repositories{
		players:   postgres.NewPlayerRepository(db),
		alerts:    postgres.NewAlertRepository(db),
		configs:   postgres.NewAlertConfigRepository(db),
		endpoints: postgres.NewWebhookEndpointRepository(db),
		delivs:    postgres.NewWebhookDeliveryRepository(db),
		runs:      postgres.NewScheduleRunRepository(db),
	}, db, nil
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg config.Config,
	syncService *usecase.SyncService,
	alertService *usecase.AlertService,
	dispatcher *usecase.WebhookDispatcher,
	cacheStore *cache.Store,
	repos repositories,
	logger *logging.Logger,
) error {
	jobs := []struct {
		job schedule.Job
		fn  scheduler.JobFunc
	}{
		{
			job: schedule.Job{Name: "daily-sync", CronSpec: cfg.JobDailySyncCron, Enabled: true},
			fn: func(ctx context.Context) error {
				result, err := syncService.SyncAll(ctx)
				if err != nil {
					return err
				}
				logger.InfoContext(ctx, "daily sync finished",
					"players", result.Players, "alerts_created", result.AlertsCreated, "duration", result.Duration)
				return nil
			},
		},
		{
			job: schedule.Job{Name: "cache-warm", CronSpec: cfg.JobCacheWarmCron, Enabled: true},
			fn: func(ctx context.Context) error {
				warmed, err := syncService.WarmTracked(ctx)
				if err != nil {
					return err
				}
				logger.InfoContext(ctx, "cache warm finished", "warmed", warmed)
				return nil
			},
		},
		{
			job: schedule.Job{Name: "transfer-check", Interval: cfg.JobTransferCheckInterval, Enabled: true},
			fn: func(ctx context.Context) error {
				touched, err := syncService.CheckTransfers(ctx, time.Now().Add(-cfg.JobTransferCheckInterval))
				if err != nil {
					return err
				}
				logger.InfoContext(ctx, "transfer check finished", "players_touched", touched)
				return nil
			},
		},
		{
			job: schedule.Job{Name: "market-trends", Interval: cfg.JobMarketTrendsInterval, Enabled: true},
			fn: func(ctx context.Context) error {
				refreshed, err := syncService.RefreshMarketTrends(ctx)
				if err != nil {
					return err
				}
				logger.InfoContext(ctx, "market trend refresh finished", "players", refreshed)
				return nil
			},
		},
		{
			job: schedule.Job{Name: "maintenance-sweep", Interval: cfg.JobSweepInterval, Enabled: true},
			fn: func(ctx context.Context) error {
				swept := cacheStore.Sweep(ctx)
				pruned, err := alertService.PruneExpired(ctx)
				if err != nil {
					return err
				}
				now := time.Now()
				deliveriesPruned, err := repos.delivs.DeleteTerminalBefore(ctx, now.Add(-cfg.DeliveryRetention))
				if err != nil {
					return err
				}
				runsPruned, err := repos.runs.DeleteBefore(ctx, now.Add(-cfg.JobRunRetention))
				if err != nil {
					return err
				}
				// The sweep interval comfortably exceeds the worst-case retry
				// span, so nothing in flight is resubmitted.
				recovered, err := dispatcher.RecoverPending(ctx, cfg.JobSweepInterval)
				if err != nil {
					return err
				}
				logger.InfoContext(ctx, "maintenance sweep finished",
					"cache_entries_swept", swept, "alerts_pruned", pruned,
					"deliveries_pruned", deliveriesPruned, "job_runs_pruned", runsPruned,
					"deliveries_recovered", recovered)
				return nil
			},
		},
	}

	for _, entry := range jobs {
		if err := sched.Register(entry.job, entry.fn); err != nil {
			return fmt.Errorf("register job %s: %w", entry.job.Name, err)
		}
	}
	return nil
}
