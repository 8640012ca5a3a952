/*
auth.go - Password gate for the operator API

PURPOSE:
  The fee desk is operated by one office account. POST /api/auth/login
  trades the office password for a short-lived HS256 token; every other
  /api route then requires "Authorization: Bearer <token>".

  When no password hash is configured the gate is off and all routes are
  public (local demo mode).

  The engine never sees any of this; identity is not part of the ledger.
*/
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "fee-ledger"

var errInvalidToken = errors.New("invalid or expired token")

// Auth verifies the office password and issues tokens.
type Auth struct {
	PasswordHash []byte
	Secret       []byte
	TTL          time.Duration
	Now          func() time.Time
}

// NewAuth returns nil when passwordHash is empty, which disables the gate.
func NewAuth(passwordHash, secret string, ttl time.Duration) *Auth {
	if passwordHash == "" {
		return nil
	}
	return &Auth{
		PasswordHash: []byte(passwordHash),
		Secret:       []byte(secret),
		TTL:          ttl,
		Now:          time.Now,
	}
}

// HashPassword returns the bcrypt hash to put in auth.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks password and returns a signed token with its expiry.
func (a *Auth) Login(password string) (string, time.Time, error) {
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return "", time.Time{}, errors.New("wrong password")
	}
	now := a.Now()
	exp := now.Add(a.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "office",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Verify parses and validates a token.
func (a *Auth) Verify(token string) error {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return a.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return errInvalidToken
	}
	return nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		if err := a.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
