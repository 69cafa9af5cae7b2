package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/scoutpulse/scout-engine/internal/domain/alert"
	"github.com/scoutpulse/scout-engine/internal/usecase"
)

type ruleConfigUpsertRequest struct {
	Enabled              *bool   `json:"enabled"`
	ContractMonths       int     `json:"contract_months" validate:"omitempty,min=1,max=60"`
	PriceDropFraction    float64 `json:"price_drop_fraction" validate:"omitempty,gt=0,lt=1"`
	MinRating            float64 `json:"min_rating" validate:"omitempty,gt=0,max=10"`
	MaxAge               int     `json:"max_age" validate:"omitempty,min=15,max=50"`
	MaxBudget            float64 `json:"max_budget" validate:"omitempty,gt=0"`
	PerformanceThreshold float64 `json:"performance_threshold" validate:"omitempty,gt=0"`
	SuppressionSeconds   int64   `json:"suppression_seconds" validate:"omitempty,min=60"`
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListAlerts")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	filter := alert.Filter{
		Rule:       alert.RuleType(strings.TrimSpace(r.URL.Query().Get("rule"))),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	}
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			writeError(ctx, w, fmt.Errorf("%w: limit must be a non-negative integer", usecase.ErrInvalidInput))
			return
		}
		filter.Limit = limit
	}

	alerts, err := h.alertService.List(ctx, tenantID, filter)
	if err != nil {
		h.logger.WarnContext(ctx, "list alerts failed", "tenant_id", tenantID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, alerts)
}

func (h *Handler) GetAlertStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetAlertStats")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	stats, err := h.alertService.Stats(ctx, tenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "alert stats failed", "tenant_id", tenantID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, stats)
}

func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	h.markAlert(w, r, "httpapi.Handler.MarkAlertRead", h.alertService.MarkRead)
}

func (h *Handler) MarkAlertActed(w http.ResponseWriter, r *http.Request) {
	h.markAlert(w, r, "httpapi.Handler.MarkAlertActed", h.alertService.MarkActed)
}

func (h *Handler) markAlert(w http.ResponseWriter, r *http.Request, spanName string, apply func(ctx context.Context, tenantID, alertID string) error) {
	ctx, span := startSpan(r.Context(), spanName)
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	alertID := strings.TrimSpace(r.PathValue("alertID"))
	if alertID == "" {
		writeError(ctx, w, fmt.Errorf("%w: alert id is required", usecase.ErrInvalidInput))
		return
	}

	if err := apply(ctx, tenantID, alertID); err != nil {
		h.logger.WarnContext(ctx, "mark alert failed", "tenant_id", tenantID, "alert_id", alertID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"id": alertID})
}

func (h *Handler) ListRuleConfigs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListRuleConfigs")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	configs, err := h.alertService.Configs(ctx, tenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "list rule configs failed", "tenant_id", tenantID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, configs)
}

func (h *Handler) UpsertRuleConfig(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpsertRuleConfig")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	rule := alert.RuleType(strings.TrimSpace(r.PathValue("rule")))
	var req ruleConfigUpsertRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	cfg := alert.RuleConfig{
		TenantID:             tenantID,
		Rule:                 rule,
		Enabled:              req.Enabled == nil || *req.Enabled,
		ContractMonths:       req.ContractMonths,
		PriceDropFraction:    req.PriceDropFraction,
		MinRating:            req.MinRating,
		MaxAge:               req.MaxAge,
		MaxBudget:            req.MaxBudget,
		PerformanceThreshold: req.PerformanceThreshold,
		Suppression:          time.Duration(req.SuppressionSeconds) * time.Second,
	}

	stored, err := h.alertService.RegisterConfig(ctx, cfg)
	if err != nil {
		h.logger.WarnContext(ctx, "upsert rule config failed", "tenant_id", tenantID, "rule", rule, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, stored)
}
