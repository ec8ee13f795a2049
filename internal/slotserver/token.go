// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package slotserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/validation"
)

// tokenIssuer is the iss claim of every slotd token.
const tokenIssuer = "slotd"

// minSecretLength is the shortest accepted HS256 secret.
const minSecretLength = 32

// ErrInvalidToken wraps every token verification failure.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents slot token claims. Subject is the account.
type Claims struct {
	jwt.RegisteredClaims
}

// Account returns the account the token grants access to.
func (c *Claims) Account() string {
	return c.Subject
}

// TokenManager mints and verifies slot tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager from the slot server config.
// The secret must be at least 32 characters. A zero TokenTTL mints tokens
// that never expire.
func NewTokenManager(cfg config.SlotServerConfig) (*TokenManager, error) {
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("slot server jwt_secret must be at least %d characters", minSecretLength)
	}
	return &TokenManager{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL, now: time.Now}, nil
}

// Issue creates a signed token for account.
func (m *TokenManager) Issue(account string) (string, error) {
	if !validation.ValidSlotName(account) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, account)
	}

	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature, algorithm, issuer and time claims
// and returns its claims.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", ErrInvalidToken)
	}
	if !validation.ValidSlotName(claims.Subject) {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	return claims, nil
}
