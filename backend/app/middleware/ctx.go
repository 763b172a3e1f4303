package middleware

import (
	"context"

	jwtutil "taskrelay/backend/app/jwt"
)

func lookup[T any](ctx context.Context, key ctxKey) T {
	v, _ := ctx.Value(key).(T)
	return v
}

// GetClaims is nil outside RequireAuth and RequireAdmin.
func GetClaims(ctx context.Context) *jwtutil.Claims {
	return lookup[*jwtutil.Claims](ctx, ClaimsKey)
}

func GetToken(ctx context.Context) string {
	return lookup[string](ctx, TokenKey)
}

func GetRequestID(ctx context.Context) string {
	return lookup[string](ctx, RequestIDKey)
}
