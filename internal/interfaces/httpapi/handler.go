package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/scoutpulse/scout-engine/internal/platform/cache"
	"github.com/scoutpulse/scout-engine/internal/platform/logging"
	"github.com/scoutpulse/scout-engine/internal/scheduler"
	"github.com/scoutpulse/scout-engine/internal/upstream"
	"github.com/scoutpulse/scout-engine/internal/usecase"
)

type Handler struct {
	syncService  *usecase.SyncService
	alertService *usecase.AlertService
	dispatcher   *usecase.WebhookDispatcher
	sched        *scheduler.Scheduler
	cacheStore   *cache.Store
	upstream     *upstream.Client
	logger       *logging.Logger
	validator    *validator.Validate
}

func NewHandler(
	syncService *usecase.SyncService,
	alertService *usecase.AlertService,
	dispatcher *usecase.WebhookDispatcher,
	sched *scheduler.Scheduler,
	cacheStore *cache.Store,
	upstreamClient *upstream.Client,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		syncService:  syncService,
		alertService: alertService,
		dispatcher:   dispatcher,
		sched:        sched,
		cacheStore:   cacheStore,
		upstream:     upstreamClient,
		logger:       logger,
		validator:    validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func requireTenant(ctx context.Context) (string, error) {
	tenantID, ok := tenantFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("%w: tenant is not resolved", usecase.ErrUnauthorized)
	}
	return tenantID, nil
}
