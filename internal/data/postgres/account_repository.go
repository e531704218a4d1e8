// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository runs against a persistence.Querier so the same code serves
// pooled reads and statements inside a unit of work.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/platform/persistence"
)

const accountColumns = `id, owner_name, COALESCE(phone, ''), account_number, upi_alias, account_type, balance, pin_hash, version, created_at, updated_at, archived_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be a pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) *AccountRepository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository bound to tx.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account. Unique collisions on account number, UPI alias
// or phone are reported as account.ErrDuplicateAccount.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, owner_name, phone, account_number, upi_alias, account_type, balance, pin_hash, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.OwnerName,
		nullIfEmpty(acc.Phone),
		acc.AccountNumber,
		acc.UPIAlias,
		acc.Type,
		acc.Balance,
		acc.PINHash,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return account.ErrDuplicateAccount{Field: duplicateAccountField(persistence.ConstraintName(err))}
		}
		r.logger.Error("Failed to create account", "id", acc.ID.String(), "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// FindByLookup resolves a receiver by UPI alias (case-insensitive), account
// number or registered phone.
func (r *AccountRepository) FindByLookup(ctx context.Context, lookup account.Lookup) (*account.Account, error) {
	if err := lookup.Validate(); err != nil {
		return nil, err
	}

	var where string
	switch lookup.Kind {
	case account.LookupUPI:
		where = `LOWER(upi_alias) = LOWER($1)`
	case account.LookupAccount:
		where = `account_number = $1`
	case account.LookupMobile:
		where = `phone = $1`
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, lookup.Value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrReceiverNotFound{Lookup: lookup}
		}
		r.logger.Error("Failed to find account", "lookup_kind", string(lookup.Kind), "error", err)
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return acc, nil
}

// LockForUpdate obtains a row lock on the account and returns its current state.
// It must run inside a transaction.
func (r *AccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to lock account for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock account for update: %w", err)
	}

	return acc, nil
}

// UpdateBalance writes the new balance if the row still carries expectedVersion.
// Returns ErrConcurrentModification otherwise.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	query := `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`

	result, err := r.querier.Exec(ctx, query, balance, id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update account balance", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountID: id}
	}

	return nil
}

// UpdatePIN replaces the stored PIN hash
func (r *AccountRepository) UpdatePIN(ctx context.Context, id uuid.UUID, pinHash string) error {
	query := `UPDATE accounts SET pin_hash = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.querier.Exec(ctx, query, pinHash, id)
	if err != nil {
		r.logger.Error("Failed to update account PIN", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update account PIN: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{AccountID: id}
	}

	return nil
}

// Archive stamps archived_at once; archiving twice keeps the first timestamp.
func (r *AccountRepository) Archive(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE accounts SET archived_at = COALESCE(archived_at, $1), updated_at = NOW() WHERE id = $2`

	result, err := r.querier.Exec(ctx, query, at, id)
	if err != nil {
		r.logger.Error("Failed to archive account", "id", id.String(), "error", err)
		return fmt.Errorf("failed to archive account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{AccountID: id}
	}

	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID,
		&acc.OwnerName,
		&acc.Phone,
		&acc.AccountNumber,
		&acc.UPIAlias,
		&acc.Type,
		&acc.Balance,
		&acc.PINHash,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
		&acc.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func duplicateAccountField(constraint string) string {
	switch constraint {
	case "ux_accounts_account_number":
		return "account number"
	case "ux_accounts_upi_alias":
		return "UPI alias"
	case "ux_accounts_phone":
		return "phone"
	}
	return "identifier"
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
