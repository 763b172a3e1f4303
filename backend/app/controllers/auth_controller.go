package controllers

import (
	"net/http"

	"taskrelay/backend/app/dto"
	jwtutil "taskrelay/backend/app/jwt"
	"taskrelay/backend/app/middleware"
	"taskrelay/backend/app/services"

	"github.com/rs/zerolog"
)

type AuthController struct {
	Users  *services.UserService
	Signer *jwtutil.Signer
	Log    zerolog.Logger
}

func NewAuthController(users *services.UserService, signer *jwtutil.Signer, log zerolog.Logger) *AuthController {
	return &AuthController{Users: users, Signer: signer, Log: log}
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}
	u, err := c.Users.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		c.Log.Warn().Str("username", req.Username).Str("ip", remoteIP(r)).Msg("login failed")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := c.Signer.Sign(u.ID, u.Username, u.Role)
	if err != nil {
		c.Log.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "token error")
		return
	}
	c.Log.Info().Str("username", u.Username).Str("role", u.Role).Msg("operator logged in")
	writeJSON(w, http.StatusOK, dto.TokenResponse{AccessToken: token, TokenType: "bearer", Username: u.Username, Role: u.Role})
}

// Logout revokes the presented token. Mounted behind RequireAuth.
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	c.Signer.Revoke(claims)
	c.Log.Info().Str("username", claims.Username).Msg("operator logged out")
	writeJSON(w, http.StatusOK, dto.LogoutResponse{Status: "success", Message: "Logged out"})
}

// Verify never fails; it reports whether the bearer token is usable.
func (c *AuthController) Verify(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeJSON(w, http.StatusOK, dto.VerifyResponse{})
		return
	}
	claims, err := c.Signer.Parse(token)
	if err != nil {
		writeJSON(w, http.StatusOK, dto.VerifyResponse{})
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyResponse{Authenticated: true, Username: claims.Username, Role: claims.Role})
}
