// Copyright (c) 2026 Registra. All rights reserved.

// PostgreSQL implementation of the identity repositories.
//
// # Architecture
//
// Repositories here are strictly separated from domain logic. They implement
// the domain-defined interfaces (e.g., [AccountRepository]) using the
// [pgxpool.Pool] connection manager.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/registra/registra/internal/platform/apperr"
	"github.com/registra/registra/internal/platform/dberr"
	"github.com/registra/registra/pkg/pagination"
)

// accountColumns is the canonical SELECT list shared by every account query.
const accountColumns = `
	id, email, password_hash, role, is_active,
	first_name, last_name, last_login, created_at, updated_at`

// PostgresAccountRepository implements the AccountRepository interface using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account record into the identity.account table.
//
// The generated primary key and timestamps are written back into the entity.
//
// # Parameters
//   - ctx: Context for the database operation.
//   - account: The account entity to persist.
func (repository *PostgresAccountRepository) Create(ctx context.Context, account *Account) error {
	const query = `
		INSERT INTO identity.account (
			email, password_hash, role, is_active, first_name, last_name
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := repository.pool.QueryRow(ctx, query,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.IsActive,
		account.FirstName,
		account.LastName,
	).Scan(
		&account.ID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("Email is already registered")
		}
		return dberr.Wrap(err, "create_account")
	}

	return nil
}

// FindByEmail retrieves an account record by its unique email address.
//
// # Returns
//
// Returns [*Account] if found, or [apperr.NotFound] if no account exists.
func (repository *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM identity.account
		WHERE lower(email) = lower($1)`

	account, err := scanAccount(repository.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account not found with this email")
		}
		return nil, dberr.Wrap(err, "find_account_by_email")
	}

	return account, nil
}

// FindByID retrieves an account record by its primary key.
//
// # Returns
//
// Returns [*Account] if found, or [apperr.NotFound] if no account exists.
func (repository *PostgresAccountRepository) FindByID(ctx context.Context, id int64) (*Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM identity.account
		WHERE id = $1`

	account, err := scanAccount(repository.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account not found")
		}
		return nil, dberr.Wrap(err, "find_account_by_id")
	}

	return account, nil
}

// UpdateFields applies only the non-nil fields of the patch to one account.
//
// The SET clause is assembled dynamically so unrelated columns are never
// touched and updated_at always moves forward.
func (repository *PostgresAccountRepository) UpdateFields(ctx context.Context, id int64, patch AccountPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	assignments := make([]string, 0, 6)
	arguments := make([]any, 0, 7)
	arguments = append(arguments, id)

	appendAssignment := func(column string, value any) {
		arguments = append(arguments, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(arguments)))
	}

	if patch.PasswordHash != nil {
		appendAssignment("password_hash", *patch.PasswordHash)
	}
	if patch.IsActive != nil {
		appendAssignment("is_active", *patch.IsActive)
	}
	if patch.LastLogin != nil {
		appendAssignment("last_login", *patch.LastLogin)
	}
	if patch.FirstName != nil {
		appendAssignment("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		appendAssignment("last_name", *patch.LastName)
	}
	appendAssignment("updated_at", time.Now())

	query := fmt.Sprintf(
		"UPDATE identity.account SET %s WHERE id = $1",
		strings.Join(assignments, ", "),
	)

	tag, err := repository.pool.Exec(ctx, query, arguments...)
	if err != nil {
		return dberr.Wrap(err, "update_account_fields")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account not found")
	}

	return nil
}

// List returns one page of accounts ordered by creation time, newest first,
// together with the total row count for pagination metadata.
func (repository *PostgresAccountRepository) List(ctx context.Context, params pagination.Params) ([]*Account, int, error) {
	const countQuery = "SELECT COUNT(*) FROM identity.account"

	var total int
	if err := repository.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_accounts")
	}

	const listQuery = `
		SELECT ` + accountColumns + `
		FROM identity.account
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := repository.pool.Query(ctx, listQuery, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_accounts")
	}
	defer rows.Close()

	accounts := make([]*Account, 0, params.Limit)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_account")
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "list_accounts")
	}

	return accounts, total, nil
}

// scanAccount reads one account row from any pgx row source.
func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.IsActive,
		&account.FirstName,
		&account.LastName,
		&account.LastLogin,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}
