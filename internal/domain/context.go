package domain

import "context"

type contextKey string

const ownerIDKey contextKey = "owner_id"

// WithOwnerID stores the authenticated owner id in ctx
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// GetOwnerIDFromContext returns the authenticated owner id, or "" when unauthenticated
func GetOwnerIDFromContext(ctx context.Context) string {
	if ownerID, ok := ctx.Value(ownerIDKey).(string); ok {
		return ownerID
	}
	return ""
}
