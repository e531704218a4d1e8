package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/platform/persistence"
)

// IdempotencyRepository implements idempotency.Repository for PostgreSQL
type IdempotencyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewIdempotencyRepository(logger *slog.Logger, db *persistence.PostgresDB) *IdempotencyRepository {
	return &IdempotencyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *IdempotencyRepository) WithTx(tx pgx.Tx) *IdempotencyRepository {
	return &IdempotencyRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Reserve inserts the record in IN_PROGRESS state. The primary key on
// (scope, key) serialises concurrent reservations; the loser gets
// idempotency.ErrDuplicateKey.
func (r *IdempotencyRepository) Reserve(ctx context.Context, record *idempotency.Record) error {
	query := `
		INSERT INTO idempotency_keys (key, scope, fingerprint, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query,
		record.Key,
		record.Scope,
		record.Fingerprint,
		record.Status,
		record.CreatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return idempotency.ErrDuplicateKey
		}
		r.logger.Error("Failed to reserve idempotency key", "scope", record.Scope, "error", err)
		return fmt.Errorf("failed to reserve idempotency key: %w", err)
	}

	return nil
}

// Complete records the outcome of a reserved key
func (r *IdempotencyRepository) Complete(ctx context.Context, scope, key string, transactionID uuid.UUID, at time.Time) error {
	query := `
		UPDATE idempotency_keys
		SET status = $1, transaction_id = $2, completed_at = $3
		WHERE scope = $4 AND key = $5
	`

	result, err := r.querier.Exec(ctx, query, idempotency.StatusCompleted, transactionID, at, scope, key)
	if err != nil {
		r.logger.Error("Failed to complete idempotency key", "scope", scope, "transaction_id", transactionID.String(), "error", err)
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return idempotency.ErrRecordNotFound{Key: key}
	}

	return nil
}

// Get retrieves a record by scope and key
func (r *IdempotencyRepository) Get(ctx context.Context, scope, key string) (*idempotency.Record, error) {
	query := `
		SELECT key, scope, fingerprint, status, transaction_id, created_at, completed_at
		FROM idempotency_keys
		WHERE scope = $1 AND key = $2
	`

	var rec idempotency.Record
	err := r.querier.QueryRow(ctx, query, scope, key).Scan(
		&rec.Key,
		&rec.Scope,
		&rec.Fingerprint,
		&rec.Status,
		&rec.TransactionID,
		&rec.CreatedAt,
		&rec.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, idempotency.ErrRecordNotFound{Key: key}
		}
		r.logger.Error("Failed to get idempotency record", "scope", scope, "error", err)
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	return &rec, nil
}

// PurgeBefore deletes records created before cutoff
func (r *IdempotencyRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM idempotency_keys WHERE created_at < $1`

	result, err := r.querier.Exec(ctx, query, cutoff)
	if err != nil {
		r.logger.Error("Failed to purge idempotency records", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to purge idempotency records: %w", err)
	}

	return result.RowsAffected(), nil
}
