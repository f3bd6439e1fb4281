// Copyright (c) 2026 Registra. All rights reserved.

/*
Package identity implements the authentication and access-control core.

It defines the Account entity and the logic for credential verification,
token issuance, password lifecycle, and account activation state.

# Architecture

This layer is the "Truth" of the system. The entity defined here encapsulates
all business rules related to who may act on the platform; every other domain
module consumes it through the request-scoped identity bound by the guards.
*/
package identity

import (
	"time"

	"github.com/registra/registra/internal/platform/sec"
)

// # Domain Entities

// Account represents a registered member of the institution.
type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	Role         sec.Role  `json:"role"`
	IsActive     bool      `json:"is_active"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	// LastLogin is advisory only; no invariant depends on it.
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Identity returns the normalized request-scoped view of the account.
func (account *Account) Identity() *sec.Identity {
	return &sec.Identity{
		ID:        account.ID,
		Email:     account.Email,
		Role:      account.Role,
		FirstName: account.FirstName,
		LastName:  account.LastName,
	}
}

// # Field Identifiers

// Global field names for validation and identity mapping in the identity domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldRole            = "role"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldUser            = "user"
	FieldAccountID       = "accountID"
)
