package httpapi

import "context"

type contextKey string

const tenantContextKey contextKey = "tenant"

func withTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

func tenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantContextKey).(string)
	return tenantID, ok && tenantID != ""
}
