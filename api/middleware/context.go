package middleware

import "context"

// ctxKey namespaces the request-scoped values this package sets.
type ctxKey uint8

const (
	keyUserID ctxKey = iota
	keyRole
	keyShopID
	keyRequestID
)

func withValue(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithUserID stores the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, keyUserID, userID)
}

// WithRole stores the actor role.
func WithRole(ctx context.Context, role string) context.Context {
	return withValue(ctx, keyRole, role)
}

// WithShopID stores the shop a seller token is bound to.
func WithShopID(ctx context.Context, shopID string) context.Context {
	return withValue(ctx, keyShopID, shopID)
}

func UserIDFromContext(ctx context.Context) string { return valueOf(ctx, keyUserID) }

func RoleFromContext(ctx context.Context) string { return valueOf(ctx, keyRole) }

func ShopIDFromContext(ctx context.Context) string { return valueOf(ctx, keyShopID) }

// RequestIDFromContext returns the id set by RequestID, if any.
func RequestIDFromContext(ctx context.Context) string { return valueOf(ctx, keyRequestID) }
