// Copyright (c) 2026 Registra. All rights reserved.

package identity_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registra/registra/internal/identity"
	"github.com/registra/registra/internal/platform/apperr"
	"github.com/registra/registra/internal/platform/sec"
	"github.com/registra/registra/pkg/pagination"
)

// # In-Memory Fakes

type fakeAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*identity.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[int64]*identity.Account{}}
}

func (repo *fakeAccountRepo) FindByID(_ context.Context, id int64) (*identity.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	account, ok := repo.accounts[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	copied := *account
	return &copied, nil
}

func (repo *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*identity.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, account := range repo.accounts {
		if strings.EqualFold(account.Email, email) {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (repo *fakeAccountRepo) Create(_ context.Context, account *identity.Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, existing := range repo.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return apperr.Conflict("Email is already registered")
		}
	}

	repo.nextID++
	account.ID = repo.nextID
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt

	copied := *account
	repo.accounts[account.ID] = &copied
	return nil
}

func (repo *fakeAccountRepo) UpdateFields(_ context.Context, id int64, patch identity.AccountPatch) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	account, ok := repo.accounts[id]
	if !ok {
		return apperr.NotFound("Account")
	}

	if patch.PasswordHash != nil {
		account.PasswordHash = *patch.PasswordHash
	}
	if patch.IsActive != nil {
		account.IsActive = *patch.IsActive
	}
	if patch.LastLogin != nil {
		account.LastLogin = patch.LastLogin
	}
	if patch.FirstName != nil {
		account.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		account.LastName = *patch.LastName
	}
	account.UpdatedAt = time.Now()
	return nil
}

func (repo *fakeAccountRepo) List(_ context.Context, params pagination.Params) ([]*identity.Account, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	accounts := make([]*identity.Account, 0, len(repo.accounts))
	for id := int64(1); id <= repo.nextID; id++ {
		if account, ok := repo.accounts[id]; ok {
			copied := *account
			accounts = append(accounts, &copied)
		}
	}

	total := len(accounts)
	offset := params.Offset()
	if offset > total {
		offset = total
	}
	end := offset + params.Limit
	if end > total {
		end = total
	}
	return accounts[offset:end], total, nil
}

type fakeResetTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]int64
}

func newFakeResetTokenRepo() *fakeResetTokenRepo {
	return &fakeResetTokenRepo{tokens: map[string]int64{}}
}

func (repo *fakeResetTokenRepo) Set(_ context.Context, token string, accountID int64, _ time.Duration) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.tokens[token] = accountID
	return nil
}

func (repo *fakeResetTokenRepo) Get(_ context.Context, token string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	accountID, ok := repo.tokens[token]
	if !ok {
		return 0, apperr.NotFound("Reset token")
	}
	return accountID, nil
}

func (repo *fakeResetTokenRepo) Delete(_ context.Context, token string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.tokens, token)
	return nil
}

// # Test Harness

type serviceFixture struct {
	service     *identity.Service
	accounts    *fakeAccountRepo
	resetTokens *fakeResetTokenRepo
	codec       *sec.TokenCodec
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	accounts := newFakeAccountRepo()
	resetTokens := newFakeResetTokenRepo()
	codec := sec.NewTokenCodec("fixture-signing-secret", "registra.test", time.Hour)
	hasher := sec.NewPasswordHasher(4) // bcrypt.MinCost keeps the suite fast

	return &serviceFixture{
		service:     identity.NewService(accounts, resetTokens, hasher, codec, sec.RoleStudent),
		accounts:    accounts,
		resetTokens: resetTokens,
		codec:       codec,
	}
}

func (fixture *serviceFixture) register(t *testing.T, email, password string) *identity.Account {
	t.Helper()

	session, err := fixture.service.Register(context.Background(), identity.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "Member",
	})
	require.NoError(t, err)
	return session.Account
}

// # Registration

func TestService_Register(t *testing.T) {
	fixture := newServiceFixture(t)

	session, err := fixture.service.Register(context.Background(), identity.RegisterInput{
		Email:     "Ada.Lovelace@Registra.app",
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)

	// Email is normalized and the default role applies.
	assert.Equal(t, "ada.lovelace@registra.app", session.Account.Email)
	assert.Equal(t, sec.RoleStudent, session.Account.Role)
	assert.True(t, session.Account.IsActive)
	assert.NotZero(t, session.Account.ID)

	// The stored hash is never the plain password.
	assert.NotEqual(t, "correct-horse", session.Account.PasswordHash)

	// The returned token is immediately verifiable.
	claims, err := fixture.codec.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Account.ID, claims.AccountID)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.register(t, "taken@registra.app", "first-password")

	// A different casing of the same address still conflicts.
	_, err := fixture.service.Register(context.Background(), identity.RegisterInput{
		Email:    "Taken@Registra.app",
		Password: "second-password",
	})
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeConflict, ae.Code)
}

func TestService_Register_ExplicitRole(t *testing.T) {
	fixture := newServiceFixture(t)

	session, err := fixture.service.Register(context.Background(), identity.RegisterInput{
		Email:    "registrar@registra.app",
		Password: "staff-password",
		Role:     "staff",
	})
	require.NoError(t, err)
	assert.Equal(t, sec.RoleStaff, session.Account.Role)
}

func TestService_Register_UnknownRole(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.Register(context.Background(), identity.RegisterInput{
		Email:    "nobody@registra.app",
		Password: "some-password",
		Role:     "superuser",
	})
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
}

// # Login

func TestService_Login(t *testing.T) {
	fixture := newServiceFixture(t)
	account := fixture.register(t, "member@registra.app", "member-password")

	session, err := fixture.service.Login(context.Background(), "member@registra.app", "member-password")
	require.NoError(t, err)
	assert.Equal(t, account.ID, session.Account.ID)

	claims, err := fixture.codec.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)
	assert.Equal(t, string(sec.RoleStudent), claims.Role)

	// Login time is recorded.
	assert.NotNil(t, session.Account.LastLogin)
}

func TestService_Login_NoEnumeration(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.register(t, "member@registra.app", "member-password")

	// Unknown account and wrong password must be indistinguishable.
	_, unknownErr := fixture.service.Login(context.Background(), "ghost@registra.app", "whatever")
	_, wrongErr := fixture.service.Login(context.Background(), "member@registra.app", "not-the-password")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	unknownAppErr := apperr.As(unknownErr)
	wrongAppErr := apperr.As(wrongErr)
	require.NotNil(t, unknownAppErr)
	require.NotNil(t, wrongAppErr)
	assert.Equal(t, apperr.CodeUnauthorized, unknownAppErr.Code)
	assert.Equal(t, apperr.CodeUnauthorized, wrongAppErr.Code)
}

func TestService_Login_DeactivatedAccount(t *testing.T) {
	fixture := newServiceFixture(t)
	account := fixture.register(t, "suspended@registra.app", "member-password")

	require.NoError(t, fixture.service.SetActive(context.Background(), account.ID, false))

	_, err := fixture.service.Login(context.Background(), "suspended@registra.app", "member-password")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeUnauthorized, ae.Code)
}

// # Identity Resolution

func TestService_ResolveIdentity(t *testing.T) {
	fixture := newServiceFixture(t)
	account := fixture.register(t, "member@registra.app", "member-password")

	resolved, err := fixture.service.ResolveIdentity(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, resolved.ID)
	assert.Equal(t, account.Email, resolved.Email)
	assert.Equal(t, sec.RoleStudent, resolved.Role)
}

func TestService_ResolveIdentity_UnknownAccount(t *testing.T) {
	fixture := newServiceFixture(t)

	// A vanished account is an authentication failure, not a 404.
	_, err := fixture.service.ResolveIdentity(context.Background(), 404)
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeUnauthorized, ae.Code)
}

func TestService_ResolveIdentity_DeactivatedAccount(t *testing.T) {
	fixture := newServiceFixture(t)
	account := fixture.register(t, "suspended@registra.app", "member-password")

	require.NoError(t, fixture.service.SetActive(context.Background(), account.ID, false))

	_, err := fixture.service.ResolveIdentity(context.Background(), account.ID)
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeUnauthorized, ae.Code)
}

// # Password Lifecycle

func TestService_ChangePassword(t *testing.T) {
	fixture := newServiceFixture(t)
	account := fixture.register(t, "member@registra.app", "old-password")

	err := fixture.service.ChangePassword(context.Background(), account.ID, "old-password", "new-password")
	require.NoError(t, err)

	// Old password no longer works, new one does.
	_, err = fixture.service.Login(context.Background(), "member@registra.app", "old-password")
	require.Error(t, err)

	_, err = fixture.service.Login(context.Background(), "member@registra.app", "new-password")
	require.NoError(t, err)
}

func TestService_ChangePassword_WrongCurrent(t *testing.T) {
	fixture := newServiceFixture(t)
	account := fixture.register(t, "member@registra.app", "old-password")

	err := fixture.service.ChangePassword(context.Background(), account.ID, "not-the-password", "new-password")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeUnauthorized, ae.Code)

	// The stored hash must be untouched after a failed attempt.
	_, err = fixture.service.Login(context.Background(), "member@registra.app", "old-password")
	require.NoError(t, err)
}

func TestService_ResetPassword_UnknownAccount(t *testing.T) {
	fixture := newServiceFixture(t)

	err := fixture.service.ResetPassword(context.Background(), 404, "new-password")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
}

// # Password Recovery

func TestService_PasswordRecoveryFlow(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.register(t, "member@registra.app", "old-password")

	token, err := fixture.service.RequestPasswordReset(context.Background(), "member@registra.app")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, fixture.service.RedeemPasswordReset(context.Background(), token, "recovered-password"))

	_, err = fixture.service.Login(context.Background(), "member@registra.app", "recovered-password")
	require.NoError(t, err)

	// The token is burned on first use.
	err = fixture.service.RedeemPasswordReset(context.Background(), token, "another-password")
	require.Error(t, err)
}

func TestService_RequestPasswordReset_UnknownEmail(t *testing.T) {
	fixture := newServiceFixture(t)

	// Unknown addresses succeed silently to prevent enumeration.
	token, err := fixture.service.RequestPasswordReset(context.Background(), "ghost@registra.app")
	require.NoError(t, err)
	assert.Empty(t, token)
}

// # Activation

func TestService_SetActive_Idempotent(t *testing.T) {
	fixture := newServiceFixture(t)
	account := fixture.register(t, "member@registra.app", "member-password")

	// Deactivating twice and reactivating twice all succeed.
	require.NoError(t, fixture.service.SetActive(context.Background(), account.ID, false))
	require.NoError(t, fixture.service.SetActive(context.Background(), account.ID, false))
	require.NoError(t, fixture.service.SetActive(context.Background(), account.ID, true))
	require.NoError(t, fixture.service.SetActive(context.Background(), account.ID, true))

	account2, err := fixture.service.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, account2.IsActive)
}

func TestService_SetActive_UnknownAccount(t *testing.T) {
	fixture := newServiceFixture(t)

	err := fixture.service.SetActive(context.Background(), 404, false)
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
}

// # Listing

func TestService_ListAccounts(t *testing.T) {
	fixture := newServiceFixture(t)
	for _, email := range []string{"a@registra.app", "b@registra.app", "c@registra.app"} {
		fixture.register(t, email, "member-password")
	}

	accounts, total, err := fixture.service.ListAccounts(context.Background(), pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, accounts, 2)

	accounts, total, err = fixture.service.ListAccounts(context.Background(), pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, accounts, 1)
}

// # Store Failures

// outageAccountRepo simulates a database that is unreachable: every email
// lookup fails with a raw driver error instead of a typed application error.
type outageAccountRepo struct {
	*fakeAccountRepo
	findByEmailErr error
}

func (repo *outageAccountRepo) FindByEmail(_ context.Context, _ string) (*identity.Account, error) {
	return nil, repo.findByEmailErr
}

func newOutageFixture(t *testing.T) *serviceFixture {
	t.Helper()

	fixture := newServiceFixture(t)
	outage := &outageAccountRepo{
		fakeAccountRepo: fixture.accounts,
		findByEmailErr:  errors.New("dial tcp 127.0.0.1:5432: connection refused"),
	}
	fixture.service = identity.NewService(outage, fixture.resetTokens, sec.NewPasswordHasher(4), fixture.codec, sec.RoleStudent)
	return fixture
}

func TestService_Login_StoreOutage(t *testing.T) {
	fixture := newOutageFixture(t)

	session, err := fixture.service.Login(context.Background(), "ana@registra.app", "some-password")
	require.Error(t, err)
	assert.Nil(t, session)

	// An unreachable store is a server fault, not a credential failure. It must
	// never masquerade as a 401.
	ae := apperr.As(err)
	if ae != nil {
		assert.NotEqual(t, apperr.CodeUnauthorized, ae.Code)
	}
}

func TestService_RequestPasswordReset_StoreOutage(t *testing.T) {
	fixture := newOutageFixture(t)

	token, err := fixture.service.RequestPasswordReset(context.Background(), "ana@registra.app")
	require.Error(t, err)
	assert.Empty(t, token)
}
