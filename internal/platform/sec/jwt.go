// Copyright (c) 2026 Registra. All rights reserved.

// Package sec provides the cryptographic primitives of the identity core.
//
// # Architecture
//
// This package isolates security-sensitive code (password hashing, token
// signing) from the domain logic. It is injected into the application layer
// via small constructors; no package-level mutable state exists, so tests can
// run with distinct secrets side by side.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification failure kinds.
//
// Both map to HTTP 401 at the boundary, but callers react differently:
// an expired token warrants a "please re-authenticate" UX, a malformed or
// forged token is an invalid session.
var (
	// ErrTokenExpired marks a structurally valid token whose expiry has elapsed.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenInvalid marks a malformed, forged, or otherwise unverifiable token.
	ErrTokenInvalid = errors.New("sec: token invalid")
)

// AccessClaims represents the payload embedded inside a signed access token.
//
// Custom application claims are abbreviated to keep the token payload small.
// The account ID is the only claim trusted as current truth: guards re-resolve
// the account on every request instead of trusting the embedded email/role.
type AccessClaims struct {
	jwt.RegisteredClaims

	AccountID int64  `json:"uid"`
	Email     string `json:"eml"`
	Role      string `json:"rol"`
}

// TokenCodec signs and verifies compact access tokens using HMAC-SHA256.
//
// # Secret Handling
//
// The signing secret is process-wide configuration loaded once at startup and
// passed in explicitly. Rotating it invalidates all outstanding tokens; no
// rotation mechanism exists in this design.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenCodec creates a [TokenCodec] with the given signing secret, issuer,
// and token lifetime.
func NewTokenCodec(secret, issuer string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// TTL returns the configured token lifetime.
func (codec *TokenCodec) TTL() time.Duration {
	return codec.ttl
}

// Issue creates a signed access token for the given account attributes.
func (codec *TokenCodec) Issue(accountID int64, email string, role Role) (string, error) {
	currentTime := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", accountID),
			Issuer:    codec.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(codec.ttl)),
		},
		AccountID: accountID,
		Email:     email,
		Role:      string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(codec.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature integrity and expiry of a token string.
//
// # Returns
//   - *AccessClaims: The reconstructed payload on success.
//   - error: [ErrTokenExpired] for elapsed-expiry tokens, [ErrTokenInvalid]
//     for everything else (bad signature, wrong algorithm, garbage input).
func (codec *TokenCodec) Verify(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return codec.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
