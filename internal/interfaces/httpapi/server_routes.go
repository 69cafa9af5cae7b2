package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerTenantRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("GET /v1/players/{playerID}", RequireTenant(http.HandlerFunc(handler.GetPlayer)))

	mux.Handle("GET /v1/alerts", RequireTenant(http.HandlerFunc(handler.ListAlerts)))
	mux.Handle("GET /v1/alerts/stats", RequireTenant(http.HandlerFunc(handler.GetAlertStats)))
	mux.Handle("POST /v1/alerts/{alertID}/read", RequireTenant(http.HandlerFunc(handler.MarkAlertRead)))
	mux.Handle("POST /v1/alerts/{alertID}/acted", RequireTenant(http.HandlerFunc(handler.MarkAlertActed)))
	mux.Handle("GET /v1/alerts/rules", RequireTenant(http.HandlerFunc(handler.ListRuleConfigs)))
	mux.Handle("PUT /v1/alerts/rules/{rule}", RequireTenant(http.HandlerFunc(handler.UpsertRuleConfig)))

	mux.Handle("POST /v1/webhooks", RequireTenant(http.HandlerFunc(handler.RegisterWebhookEndpoint)))
	mux.Handle("GET /v1/webhooks", RequireTenant(http.HandlerFunc(handler.ListWebhookEndpoints)))
	mux.Handle("DELETE /v1/webhooks/{endpointID}", RequireTenant(http.HandlerFunc(handler.DisableWebhookEndpoint)))
	mux.Handle("GET /v1/webhooks/{endpointID}/deliveries", RequireTenant(http.HandlerFunc(handler.ListWebhookDeliveries)))
	mux.Handle("GET /v1/deliveries/{deliveryID}", RequireTenant(http.HandlerFunc(handler.GetWebhookDelivery)))
}

func registerInternalRoutes(mux *http.ServeMux, handler *Handler, internalAPIToken string) {
	mux.Handle("GET /v1/internal/jobs", RequireInternalToken(internalAPIToken, http.HandlerFunc(handler.ListJobs)))
	mux.Handle("POST /v1/internal/jobs/{jobName}/run", RequireInternalToken(internalAPIToken, http.HandlerFunc(handler.RunJob)))
	mux.Handle("GET /v1/internal/jobs/{jobName}/runs", RequireInternalToken(internalAPIToken, http.HandlerFunc(handler.ListJobRuns)))
	mux.Handle("POST /v1/internal/sync/players", RequireInternalToken(internalAPIToken, http.HandlerFunc(handler.RunSyncNow)))
	mux.Handle("POST /v1/internal/sync/transfers", RequireInternalToken(internalAPIToken, http.HandlerFunc(handler.RunTransferCheck)))
	mux.Handle("POST /v1/internal/cache/warm", RequireInternalToken(internalAPIToken, http.HandlerFunc(handler.RunCacheWarm)))
	mux.Handle("GET /v1/internal/cache/stats", RequireInternalToken(internalAPIToken, http.HandlerFunc(handler.GetCacheStats)))
	mux.Handle("GET /v1/internal/upstream/status", RequireInternalToken(internalAPIToken, http.HandlerFunc(handler.GetUpstreamStatus)))
}
