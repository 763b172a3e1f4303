package jwtutil

import (
	"errors"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrRevoked = errors.New("token revoked")

type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"uname"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Signer struct {
	Secret []byte
	Issuer string
	ExpMin int
	// Revoked holds logged-out token ids. Nil disables revocation checks.
	Revoked *Denylist
	now     func() time.Time
}

func (s *Signer) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Signer) Sign(userID uint, username, role string) (string, error) {
	now := s.clock()
	exp := now.Add(time.Duration(s.ExpMin) * time.Minute)
	claims := Claims{
		UserID: userID, Username: username, Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Secret)
}

func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) { return s.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if s.Revoked != nil && s.Revoked.Contains(claims.ID) {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke adds the token's id to the denylist until it would have expired anyway.
func (s *Signer) Revoke(claims *Claims) {
	if s.Revoked == nil || claims == nil || claims.ID == "" {
		return
	}
	exp := s.clock()
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	s.Revoked.Add(claims.ID, exp)
}

// Denylist is an in-memory set of revoked token ids keyed to their expiry.
type Denylist struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewDenylist() *Denylist {
	return &Denylist{ids: make(map[string]time.Time), now: time.Now}
}

func (d *Denylist) Add(id string, until time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = until
	d.pruneLocked()
}

func (d *Denylist) Contains(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.ids[id]
	if !ok {
		return false
	}
	if !d.now().Before(until) {
		delete(d.ids, id)
		return false
	}
	return true
}

func (d *Denylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	return len(d.ids)
}

func (d *Denylist) pruneLocked() {
	now := d.now()
	for id, until := range d.ids {
		if !now.Before(until) {
			delete(d.ids, id)
		}
	}
}
