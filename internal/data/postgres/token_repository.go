package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mybank-ledger/internal/domain/token"
	"github.com/mybank-ledger/internal/platform/persistence"
)

const tokenColumns = `id, code, kind, account_id, amount, used, transaction_id, created_at, expires_at, used_at`

// TokenRepository implements token.Repository for PostgreSQL
type TokenRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTokenRepository(logger *slog.Logger, db *persistence.PostgresDB) *TokenRepository {
	return &TokenRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	return &TokenRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Insert stores a freshly issued token. The partial unique index on unused
// codes turns a collision into token.ErrCodeCollision without aborting the
// surrounding transaction.
func (r *TokenRepository) Insert(ctx context.Context, t *token.CashToken) error {
	query := `
		INSERT INTO cash_tokens (id, code, kind, account_id, amount, used, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		ON CONFLICT (code) WHERE used = FALSE DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		t.ID,
		t.Code,
		t.Kind,
		t.AccountID,
		t.Amount,
		t.CreatedAt,
		t.ExpiresAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert cash token", "id", t.ID.String(), "kind", string(t.Kind), "error", err)
		return fmt.Errorf("failed to insert cash token: %w", err)
	}

	if result.RowsAffected() == 0 {
		return token.ErrCodeCollision
	}

	return nil
}

// LockForRedemption locks the token a code currently refers to. An unused
// token wins over historical redeemed ones sharing the code.
func (r *TokenRepository) LockForRedemption(ctx context.Context, code string, kind token.Kind) (*token.CashToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM cash_tokens
		WHERE code = $1 AND kind = $2
		ORDER BY used ASC, created_at DESC
		LIMIT 1
		FOR UPDATE
	`

	t, err := scanToken(r.querier.QueryRow(ctx, query, code, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, token.ErrTokenNotFound
		}
		r.logger.Error("Failed to lock cash token", "code", token.MaskCode(code), "error", err)
		return nil, fmt.Errorf("failed to lock cash token: %w", err)
	}

	return t, nil
}

// MarkUsed persists a redemption. The used = FALSE guard makes a second
// redemption of the same row report token.ErrTokenUsed.
func (r *TokenRepository) MarkUsed(ctx context.Context, t *token.CashToken) error {
	query := `
		UPDATE cash_tokens
		SET used = TRUE, account_id = $1, transaction_id = $2, used_at = $3
		WHERE id = $4 AND used = FALSE
	`

	result, err := r.querier.Exec(ctx, query, t.AccountID, t.TransactionID, t.UsedAt, t.ID)
	if err != nil {
		r.logger.Error("Failed to mark cash token used", "id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to mark cash token used: %w", err)
	}

	if result.RowsAffected() == 0 {
		return token.ErrTokenUsed
	}

	return nil
}

// GetForAccount returns the most recent token with this code owned by accountID.
func (r *TokenRepository) GetForAccount(ctx context.Context, code string, accountID uuid.UUID) (*token.CashToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM cash_tokens
		WHERE code = $1 AND account_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	t, err := scanToken(r.querier.QueryRow(ctx, query, code, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, token.ErrTokenNotFound
		}
		r.logger.Error("Failed to get cash token", "code", token.MaskCode(code), "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get cash token: %w", err)
	}

	return t, nil
}

// ArchiveExpired moves expired unused tokens into cash_tokens_archive and
// returns how many were moved.
func (r *TokenRepository) ArchiveExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		WITH moved AS (
			DELETE FROM cash_tokens
			WHERE used = FALSE AND expires_at < $1
			RETURNING id, code, kind, account_id, amount, created_at, expires_at
		)
		INSERT INTO cash_tokens_archive (id, code, kind, account_id, amount, created_at, expires_at, archived_at)
		SELECT id, code, kind, account_id, amount, created_at, expires_at, $1 FROM moved
	`

	result, err := r.querier.Exec(ctx, query, now)
	if err != nil {
		r.logger.Error("Failed to archive expired cash tokens", "error", err)
		return 0, fmt.Errorf("failed to archive expired cash tokens: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*token.CashToken, error) {
	var t token.CashToken
	err := row.Scan(
		&t.ID,
		&t.Code,
		&t.Kind,
		&t.AccountID,
		&t.Amount,
		&t.Used,
		&t.TransactionID,
		&t.CreatedAt,
		&t.ExpiresAt,
		&t.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
