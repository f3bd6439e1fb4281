// Copyright (c) 2026 Registra. All rights reserved.

package sec

import "fmt"

// # Account Roles

// Role represents the permission class assigned to an account.
//
// It is a closed set: every value outside the three constants below is
// rejected at the boundary, so guards can check membership exhaustively.
type Role string

const (
	// Unrestricted administrative access
	RoleAdmin Role = "admin"

	// Faculty and back-office personnel
	RoleStaff Role = "staff"

	// Default role for enrolled students
	RoleStudent Role = "student"
)

// Roles lists every admissible role, in descending order of privilege.
func Roles() []Role {
	return []Role{RoleAdmin, RoleStaff, RoleStudent}
}

// ParseRole converts a raw string into a [Role], rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.IsValid() {
		return "", fmt.Errorf("sec: unknown role %q", raw)
	}
	return role, nil
}

// IsValid reports whether the role is one of the admissible constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleStudent:
		return true
	default:
		return false
	}
}

// In reports whether the role is a member of the allowed set.
//
// Authorization is defined over allowed-role sets rather than a numeric
// hierarchy, so route guards state their admissible roles explicitly.
func (r Role) In(allowed ...Role) bool {
	for _, candidate := range allowed {
		if r == candidate {
			return true
		}
	}
	return false
}
