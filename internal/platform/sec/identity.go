// Copyright (c) 2026 Registra. All rights reserved.

package sec

// Identity is the normalized, request-scoped view of an authenticated account.
//
// It is produced by the authentication guard after re-resolving the account
// from the store — never hydrated from token claims alone — and bound to the
// request context for downstream handlers.
type Identity struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
