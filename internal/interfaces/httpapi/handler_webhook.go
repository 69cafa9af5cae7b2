package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/scoutpulse/scout-engine/internal/domain/webhook"
	"github.com/scoutpulse/scout-engine/internal/usecase"
)

type webhookRegisterRequest struct {
	URL    string   `json:"url" validate:"required,url"`
	Secret string   `json:"secret" validate:"required,min=8"`
	Events []string `json:"events" validate:"omitempty,dive,required"`
}

func (h *Handler) RegisterWebhookEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RegisterWebhookEndpoint")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req webhookRegisterRequest
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

	events := make([]webhook.EventType, 0, len(req.Events))
	for _, event := range req.Events {
		events = append(events, webhook.EventType(strings.TrimSpace(event)))
	}

	endpoint, err := h.dispatcher.RegisterEndpoint(ctx, webhook.Endpoint{
		TenantID: tenantID,
		URL:      req.URL,
		Secret:   req.Secret,
		Events:   events,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "register webhook endpoint failed", "tenant_id", tenantID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, endpoint)
}

func (h *Handler) ListWebhookEndpoints(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListWebhookEndpoints")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	endpoints, err := h.dispatcher.Endpoints(ctx, tenantID)
	if err != nil {
		h.logger.WarnContext(ctx, "list webhook endpoints failed", "tenant_id", tenantID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, endpoints)
}

func (h *Handler) DisableWebhookEndpoint(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DisableWebhookEndpoint")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	endpointID := strings.TrimSpace(r.PathValue("endpointID"))
	if endpointID == "" {
		writeError(ctx, w, fmt.Errorf("%w: endpoint id is required", usecase.ErrInvalidInput))
		return
	}

	if err := h.dispatcher.DisableEndpoint(ctx, tenantID, endpointID); err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"id": endpointID, "status": "disabled"})
}

func (h *Handler) ListWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListWebhookDeliveries")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	endpointID := strings.TrimSpace(r.PathValue("endpointID"))
	if endpointID == "" {
		writeError(ctx, w, fmt.Errorf("%w: endpoint id is required", usecase.ErrInvalidInput))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(ctx, w, fmt.Errorf("%w: limit must be a non-negative integer", usecase.ErrInvalidInput))
			return
		}
		limit = parsed
	}

	deliveries, err := h.dispatcher.DeliveryHistory(ctx, tenantID, endpointID, limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, deliveries)
}

func (h *Handler) GetWebhookDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetWebhookDelivery")
	defer span.End()

	tenantID, err := requireTenant(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	deliveryID := strings.TrimSpace(r.PathValue("deliveryID"))
	if deliveryID == "" {
		writeError(ctx, w, fmt.Errorf("%w: delivery id is required", usecase.ErrInvalidInput))
		return
	}

	delivery, err := h.dispatcher.Delivery(ctx, deliveryID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if delivery.TenantID != tenantID {
		writeError(ctx, w, fmt.Errorf("%w: delivery %s", usecase.ErrNotFound, deliveryID))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, delivery)
}
