package common

import "context"

type ctxKey string

const (
	shopKey      ctxKey = "auth/shop"
	sessionIDKey ctxKey = "auth/session-id"
)

// WithShop stores the authenticated shop domain on the context.
func WithShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopKey, shop)
}

// Shop extracts the authenticated shop domain from the context if present.
func Shop(ctx context.Context) (string, bool) {
	shop, ok := ctx.Value(shopKey).(string)
	return shop, ok && shop != ""
}

// WithSessionID stores the session-token identifier (jti/sid) on the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session identifier carried by the context.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}
