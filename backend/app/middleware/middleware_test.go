package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	jwtutil "taskrelay/backend/app/jwt"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"}, ok)

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/agents", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestLoggingTagsRouteAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := Logging(log, WithRoute("GET /agents", inner))

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "GET /agents", line["route"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.Equal(t, "req-1", line["request_id"])
}

func TestLoggingGeneratesRequestID(t *testing.T) {
	h := Logging(zerolog.Nop(), ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestRequireAdmin(t *testing.T) {
	signer := &jwtutil.Signer{Secret: []byte("k"), ExpMin: 5}
	a := &Auth{Signer: signer}

	var claims *jwtutil.Claims
	var token string
	h := a.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = GetClaims(r.Context())
		token = GetToken(r.Context())
	}))

	admin, err := signer.Sign(1, "root", "admin")
	require.NoError(t, err)
	op, err := signer.Sign(2, "op", "operator")
	require.NoError(t, err)

	for _, tc := range []struct {
		authz  string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer " + op, http.StatusForbidden},
		{"Bearer " + admin, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodPost, "/admin/users", nil)
		if tc.authz != "" {
			req.Header.Set("Authorization", tc.authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, tc.authz)
	}
	require.NotNil(t, claims)
	assert.Equal(t, "root", claims.Username)
	assert.Equal(t, admin, token)
	assert.Nil(t, GetClaims(context.Background()))
}
