// Copyright (c) 2026 Registra. All rights reserved.

package identity

import (
	"context"
	"time"

	"github.com/registra/registra/pkg/pagination"
)

// # Repository Contracts

// AccountRepository abstracts persistence for accounts.
type AccountRepository interface {
	// FindByID fetches an account by primary key.
	// Returns apperr.NotFound when no row matches.
	FindByID(context context.Context, id int64) (*Account, error)

	// FindByEmail fetches an account by normalized email.
	// Returns apperr.NotFound when no row matches.
	FindByEmail(context context.Context, email string) (*Account, error)

	// Create inserts a new account and fills ID, CreatedAt, and UpdatedAt.
	// Returns apperr.Conflict when the email is already taken.
	Create(context context.Context, account *Account) error

	// UpdateFields applies the non-nil fields of the patch to one account.
	// Returns apperr.NotFound when no row matches.
	UpdateFields(context context.Context, id int64, patch AccountPatch) error

	// List returns one page of accounts ordered by creation time,
	// together with the total row count.
	List(context context.Context, params pagination.Params) ([]*Account, int, error)
}

// AccountPatch carries a partial update; nil fields are left untouched.
type AccountPatch struct {
	PasswordHash *string
	IsActive     *bool
	LastLogin    *time.Time
	FirstName    *string
	LastName     *string
}

// IsEmpty reports whether the patch would change nothing.
func (patch AccountPatch) IsEmpty() bool {
	return patch.PasswordHash == nil &&
		patch.IsActive == nil &&
		patch.LastLogin == nil &&
		patch.FirstName == nil &&
		patch.LastName == nil
}

// ResetTokenRepository stores short-lived password reset tokens.
type ResetTokenRepository interface {
	// Set binds a token to an account for the given TTL.
	Set(context context.Context, token string, accountID int64, ttl time.Duration) error

	// Get resolves a token to the account it was issued for.
	// Returns apperr.NotFound when the token is unknown or expired.
	Get(context context.Context, token string) (int64, error)

	// Delete removes a token so it cannot be redeemed twice.
	Delete(context context.Context, token string) error
}
