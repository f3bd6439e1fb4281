// Copyright (c) 2026 Registra. All rights reserved.

package sec

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher performs one-way password hashing and verification using bcrypt.
//
// # Work Factor
//
// The cost is tunable via configuration so that operators can trade CPU time
// against offline brute-force resistance. A zero cost falls back to
// [bcrypt.DefaultCost].
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a [PasswordHasher] with the given bcrypt cost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash transforms a plain-text password into a storable bcrypt hash.
//
// The result embeds the cost and a random salt, so hashing the same password
// twice yields different strings.
func (hasher *PasswordHasher) Hash(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), hasher.cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with its stored hash.
//
// A mismatch returns (false, nil). A non-nil error means the underlying
// primitive failed (e.g. a malformed stored hash) — callers must classify
// that as an internal failure, never as "wrong password".
func (hasher *PasswordHasher) Verify(plainTextPassword, existingHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("sec: password verification failed: %w", err)
}
