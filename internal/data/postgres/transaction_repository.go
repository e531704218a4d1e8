package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/platform/persistence"
)

const transactionColumns = `id, sender_id, receiver_id, amount, type, channel, status, description, reference, COALESCE(idempotency_key, ''), correlation_id, created_at`

const externalReferenceConstraint = "ux_ledger_transactions_external_reference"

// TransactionRepository implements ledger.Repository over the append-only
// ledger_transactions table.
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) *TransactionRepository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a committed ledger transaction. A second external deposit with
// the same gateway reference fails with ledger.ErrAlreadyApplied.
func (r *TransactionRepository) Create(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (id, sender_id, receiver_id, amount, type, channel, status, description, reference, idempotency_key, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		tx.ID,
		tx.SenderID,
		tx.ReceiverID,
		tx.Amount,
		tx.Type,
		tx.Channel,
		tx.Status,
		tx.Description,
		tx.Reference,
		nullIfEmpty(tx.IdempotencyKey),
		tx.CorrelationID,
		tx.CreatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) && persistence.ConstraintName(err) == externalReferenceConstraint {
			return ledger.ErrAlreadyApplied
		}
		r.logger.Error("Failed to create ledger transaction", "id", tx.ID.String(), "type", string(tx.Type), "error", err)
		return fmt.Errorf("failed to create ledger transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a ledger transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE id = $1`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get ledger transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger transaction: %w", err)
	}

	return tx, nil
}

// GetExternalDeposit finds the deposit recorded for a gateway reference.
func (r *TransactionRepository) GetExternalDeposit(ctx context.Context, reference string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE type = $1 AND reference = $2`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, shared.TransactionTypeExternalDeposit, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound{}
		}
		r.logger.Error("Failed to get external deposit", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get external deposit: %w", err)
	}

	return tx, nil
}

// ListByAccount returns transactions where the account is sender or receiver,
// newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list ledger transactions", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list ledger transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*ledger.Transaction, 0, limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan ledger transaction", "error", err)
			return nil, fmt.Errorf("failed to scan ledger transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger transactions", "error", err)
		return nil, fmt.Errorf("error iterating over ledger transactions: %w", err)
	}

	return txs, nil
}

// CountByAccount counts transactions where the account is sender or receiver
func (r *TransactionRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM ledger_transactions WHERE sender_id = $1 OR receiver_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		r.logger.Error("Failed to count ledger transactions", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to count ledger transactions: %w", err)
	}

	return count, nil
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.SenderID,
		&tx.ReceiverID,
		&tx.Amount,
		&tx.Type,
		&tx.Channel,
		&tx.Status,
		&tx.Description,
		&tx.Reference,
		&tx.IdempotencyKey,
		&tx.CorrelationID,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
