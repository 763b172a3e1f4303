package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtutil "taskrelay/backend/app/jwt"
)

type ctxKey int

const (
	ClaimsKey ctxKey = iota + 1
	TokenKey
)

type Auth struct{ Signer *jwtutil.Signer }

func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return token, token != ""
}

func (a *Auth) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, *jwtutil.Claims, bool) {
	token, ok := BearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return r, nil, false
	}
	claims, err := a.Signer.Parse(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return r, nil, false
	}
	ctx := context.WithValue(r.Context(), ClaimsKey, claims)
	ctx = context.WithValue(ctx, TokenKey, token)
	return r.WithContext(ctx), claims, true
}

func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, claims, ok := a.authenticate(w, r)
		if !ok {
			return
		}
		if claims.Role != "admin" {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
