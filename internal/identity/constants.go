// Copyright (c) 2026 Registra. All rights reserved.

package identity

import "time"

// # Password Reset

const (
	// ResetTokenTTL bounds how long a password reset token stays redeemable.
	ResetTokenTTL = 30 * time.Minute

	// ResetTokenBytes is the entropy of a reset token before encoding.
	ResetTokenBytes = 32
)

// # Validation Bounds

const (
	PasswordMinLen = 8
	PasswordMaxLen = 72 // bcrypt truncates input beyond 72 bytes.
	EmailMaxLen    = 255
	NameMaxLen     = 100
)
