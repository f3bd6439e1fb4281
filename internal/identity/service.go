// Copyright (c) 2026 Registra. All rights reserved.

package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/registra/registra/internal/platform/apperr"
	"github.com/registra/registra/internal/platform/sec"
	"github.com/registra/registra/pkg/pagination"
	"github.com/registra/registra/pkg/pointer"
)

// # Contracts & Types

// TokenIssuer defines the contract for minting signed access tokens.
type TokenIssuer interface {
	// Issue creates a signed JWT string for the given account.
	Issue(accountID int64, email string, role sec.Role) (string, error)
}

// Service implements the account and authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed before merge.
type Service struct {
	accountRepository    AccountRepository
	resetTokenRepository ResetTokenRepository
	hasher               *sec.PasswordHasher
	tokens               TokenIssuer
	defaultRole          sec.Role
}

// NewService constructs a new identity [Service] with necessary dependencies.
func NewService(
	accountRepo AccountRepository,
	resetRepo ResetTokenRepository,
	hasher *sec.PasswordHasher,
	tokens TokenIssuer,
	defaultRole sec.Role,
) *Service {
	return &Service{
		accountRepository:    accountRepo,
		resetTokenRepository: resetRepo,
		hasher:               hasher,
		tokens:               tokens,
		defaultRole:          defaultRole,
	}
}

// normalizeEmail canonicalizes an email address before lookup or storage.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email     string
	Password  string
	Role      string // Optional; falls back to the configured default role.
	FirstName string
	LastName  string
}

// AuthSession represents a successfully authenticated account together with
// its freshly issued access token.
type AuthSession struct {
	Token   string
	Account *Account
}

/*
Register validates, hashes, and persists a brand new account.

Description: Enrollment of a new member, handling password hashing, role
resolution, and immediate token issuance so the caller is signed in.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *AuthSession: Created entity plus signed access token
  - error: Conflict (if the email exists), validation, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*AuthSession, error) {

	email := normalizeEmail(input.Email)

	// Resolve the requested role against the closed role set.
	role := service.defaultRole
	if input.Role != "" {
		parsed, err := sec.ParseRole(input.Role)
		if err != nil {
			return nil, apperr.ValidationError("Unknown role",
				apperr.FieldError{Field: FieldRole, Message: err.Error()})
		}
		role = parsed
	}

	// Verify email uniqueness first for a client-safe Conflict error. The
	// unique index remains the authority under concurrent registration.
	_, err := service.accountRepository.FindByEmail(context, email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Prevent storing plain-text passwords.
	hashedPassword, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("identity_service_hash_failed: %w", err)
	}

	account := &Account{
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         role,
		IsActive:     true,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
	}

	// Persist the account. The store maps a unique violation to Conflict.
	if err := service.accountRepository.Create(context, account); err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("identity_service_register_failed: %w", err)
	}

	token, err := service.tokens.Issue(account.ID, account.Email, account.Role)
	if err != nil {
		return nil, fmt.Errorf("identity_service_token_issue_failed: %w", err)
	}

	return &AuthSession{Token: token, Account: account}, nil
}

// # Authentication Flow

/*
Login validates account credentials and issues an access token.

Description: Verifies identity with a constant-time password comparison and
mints a signed access token. Lookup failure and password mismatch produce the
exact same error so callers cannot probe which emails are registered.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *AuthSession: Transport-ready token plus the authenticated account
  - error: Unauthorized or internal failures
*/
func (service *Service) Login(context context.Context, email, password string) (*AuthSession, error) {

	account, err := service.accountRepository.FindByEmail(context, normalizeEmail(email))

	// An unknown email gets the generic message to prevent enumeration. Any
	// other lookup failure is a store problem and must surface as such.
	if err != nil {
		if appErr := apperr.As(err); appErr != nil && appErr.Code == apperr.CodeNotFound {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, fmt.Errorf("identity_service_login_lookup_failed: %w", err)
	}

	// Deactivated accounts cannot authenticate even with correct credentials.
	if !account.IsActive {
		return nil, apperr.Unauthorized("Account deactivated")
	}

	// Verify password hash using constant-time comparison in bcrypt.
	match, err := service.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("identity_service_verify_failed: %w", err)
	}
	if !match {
		return nil, apperr.Unauthorized("Invalid credentials")
	}

	token, err := service.tokens.Issue(account.ID, account.Email, account.Role)
	if err != nil {
		return nil, fmt.Errorf("identity_service_token_issue_failed: %w", err)
	}

	// Record the login time. Advisory only, so a failure never blocks login.
	now := time.Now()
	patch := AccountPatch{LastLogin: pointer.To(now)}
	if err := service.accountRepository.UpdateFields(context, account.ID, patch); err == nil {
		account.LastLogin = &now
	}

	return &AuthSession{Token: token, Account: account}, nil
}

/*
ResolveIdentity loads the current, authoritative identity for an account.

Description: Called by the authentication guard on every request so that a
deactivated or deleted account loses access immediately, regardless of any
still-valid tokens it holds.

Parameters:
  - context: context.Context
  - accountID: int64

Returns:
  - *sec.Identity: Request-scoped identity view
  - error: Unauthorized when the account is gone or deactivated
*/
func (service *Service) ResolveIdentity(context context.Context, accountID int64) (*sec.Identity, error) {

	account, err := service.accountRepository.FindByID(context, accountID)
	if err != nil {
		if appErr := apperr.As(err); appErr != nil && appErr.Code == apperr.CodeNotFound {
			return nil, apperr.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("identity_service_resolve_failed: %w", err)
	}

	if !account.IsActive {
		return nil, apperr.Unauthorized("Account deactivated")
	}

	return account.Identity(), nil
}

// # Password Lifecycle

/*
ChangePassword allows an authenticated account to rotate its own credentials.

Description: Verifies the current password before accepting the new one. On a
mismatch the stored hash is left untouched.

Parameters:
  - context: context.Context
  - accountID: int64
  - currentPassword: string
  - newPassword: string

Returns:
  - error: Unauthorized on wrong current password, or storage failures
*/
func (service *Service) ChangePassword(context context.Context, accountID int64, currentPassword, newPassword string) error {

	account, err := service.accountRepository.FindByID(context, accountID)
	if err != nil {
		return err
	}

	// Verify the current password before allowing the change.
	match, err := service.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("identity_service_change_password_verify_failed: %w", err)
	}
	if !match {
		return apperr.Unauthorized("Current password is incorrect")
	}

	hashedPassword, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("identity_service_change_password_hash_failed: %w", err)
	}

	patch := AccountPatch{PasswordHash: pointer.To(hashedPassword)}
	if err := service.accountRepository.UpdateFields(context, accountID, patch); err != nil {
		if apperr.IsAppError(err) {
			return err
		}
		return fmt.Errorf("identity_service_change_password_update_failed: %w", err)
	}

	return nil
}

/*
ResetPassword overwrites an account's password without the current one.

Description: Administrative reset. The caller's authority is enforced by the
route guards, not here.

Parameters:
  - context: context.Context
  - accountID: int64
  - newPassword: string

Returns:
  - error: NotFound or storage failures
*/
func (service *Service) ResetPassword(context context.Context, accountID int64, newPassword string) error {

	hashedPassword, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("identity_service_reset_password_hash_failed: %w", err)
	}

	patch := AccountPatch{PasswordHash: pointer.To(hashedPassword)}
	if err := service.accountRepository.UpdateFields(context, accountID, patch); err != nil {
		if apperr.IsAppError(err) {
			return err
		}
		return fmt.Errorf("identity_service_reset_password_update_failed: %w", err)
	}

	return nil
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Generates a secure token and saves it to Redis. An unknown email
returns success with no token so callers cannot probe registered addresses.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - string: Reset token, empty when the email is unknown
  - error: Generation or storage errors
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) (string, error) {

	// NOTE: We don't return NOT_FOUND if the email doesn't exist to prevent
	// enumeration, but a store failure is not "unknown email" and must surface.
	account, err := service.accountRepository.FindByEmail(context, normalizeEmail(email))
	if err != nil {
		if appErr := apperr.As(err); appErr != nil && appErr.Code == apperr.CodeNotFound {
			return "", nil
		}
		return "", fmt.Errorf("identity_service_reset_lookup_failed: %w", err)
	}

	token, err := sec.GenerateSecureToken(ResetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("identity_service_generate_reset_token_failed: %w", err)
	}

	if err := service.resetTokenRepository.Set(context, token, account.ID, ResetTokenTTL); err != nil {
		return "", fmt.Errorf("identity_service_save_reset_token_failed: %w", err)
	}

	// TODO: Deliver the token through the notification service once it lands.
	return token, nil
}

/*
RedeemPasswordReset completes the forgot-password flow.

Description: Verifies the token, hashes the new password, updates the store,
and burns the token so it cannot be redeemed twice.

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string

Returns:
  - error: NotFound on an unknown token, or update failures
*/
func (service *Service) RedeemPasswordReset(context context.Context, token, newPassword string) error {

	accountID, err := service.resetTokenRepository.Get(context, token)
	if err != nil {
		return err
	}

	if err := service.ResetPassword(context, accountID, newPassword); err != nil {
		return err
	}

	_ = service.resetTokenRepository.Delete(context, token)

	return nil
}

// # Account Administration

/*
GetAccount fetches a single account by ID.

Parameters:
  - context: context.Context
  - accountID: int64

Returns:
  - *Account: The account entity
  - error: NotFound or storage failures
*/
func (service *Service) GetAccount(context context.Context, accountID int64) (*Account, error) {
	return service.accountRepository.FindByID(context, accountID)
}

/*
ListAccounts returns one page of accounts with the total count.

Parameters:
  - context: context.Context
  - params: pagination.Params

Returns:
  - []*Account: The requested page
  - int: Total number of accounts
  - error: Storage failures
*/
func (service *Service) ListAccounts(context context.Context, params pagination.Params) ([]*Account, int, error) {
	return service.accountRepository.List(context, params)
}

/*
SetActive flips an account's activation state.

Description: Idempotent. Activating an active account or deactivating an
inactive one succeeds without error.

Parameters:
  - context: context.Context
  - accountID: int64
  - active: bool

Returns:
  - error: NotFound or storage failures
*/
func (service *Service) SetActive(context context.Context, accountID int64, active bool) error {

	patch := AccountPatch{IsActive: pointer.To(active)}
	if err := service.accountRepository.UpdateFields(context, accountID, patch); err != nil {
		if apperr.IsAppError(err) {
			return err
		}
		return fmt.Errorf("identity_service_set_active_failed: %w", err)
	}

	return nil
}
