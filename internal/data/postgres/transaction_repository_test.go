package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/platform/persistence"
)

var transactionColumnNames = []string{"id", "sender_id", "receiver_id", "amount", "type", "channel", "status", "description", "reference", "idempotency_key", "correlation_id", "created_at"}

func testTransfer() *ledger.Transaction {
	sender, receiver := uuid.New(), uuid.New()
	return &ledger.Transaction{
		ID:             uuid.New(),
		SenderID:       &sender,
		ReceiverID:     &receiver,
		Amount:         decimal.RequireFromString("300.00"),
		Type:           shared.TransactionTypeInternalTransfer,
		Channel:        shared.ChannelUPI,
		Status:         shared.TransactionStatusCompleted,
		Description:    "Transfer to ravi@mybank",
		IdempotencyKey: "k-1",
		CorrelationID:  "corr-1",
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func transactionRows(txs ...*ledger.Transaction) *pgxmock.Rows {
	rows := pgxmock.NewRows(transactionColumnNames)
	for _, tx := range txs {
		rows.AddRow(tx.ID, tx.SenderID, tx.ReceiverID, tx.Amount, tx.Type, tx.Channel, tx.Status,
			tx.Description, tx.Reference, tx.IdempotencyKey, tx.CorrelationID, tx.CreatedAt)
	}
	return rows
}

func TestTransactionRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	tx := testTransfer()
	query := regexp.QuoteMeta("INSERT INTO ledger_transactions")
	args := []interface{}{tx.ID, tx.SenderID, tx.ReceiverID, tx.Amount, tx.Type, tx.Channel, tx.Status,
		tx.Description, tx.Reference, &tx.IdempotencyKey, tx.CorrelationID, tx.CreatedAt}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(args...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, tx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate external reference", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: persistence.UniqueViolation, ConstraintName: externalReferenceConstraint})

		assert.ErrorIs(t, repo.Create(ctx, tx), ledger.ErrAlreadyApplied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other unique violation is a persistence error", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: persistence.UniqueViolation, ConstraintName: "ledger_transactions_pkey"})

		err := repo.Create(ctx, tx)
		assert.NotErrorIs(t, err, ledger.ErrAlreadyApplied)
		assert.Contains(t, err.Error(), "failed to create ledger transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	tx := testTransfer()
	query := regexp.QuoteMeta("FROM ledger_transactions WHERE id = $1")

	mock.ExpectQuery(query).WithArgs(tx.ID).WillReturnRows(transactionRows(tx))
	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx, got)

	mock.ExpectQuery(query).WithArgs(tx.ID).WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetByID(ctx, tx.ID)
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound{TransactionID: tx.ID})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_GetExternalDeposit(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	receiver := uuid.New()
	tx := &ledger.Transaction{
		ID:         uuid.New(),
		ReceiverID: &receiver,
		Amount:     decimal.RequireFromString("250.00"),
		Type:       shared.TransactionTypeExternalDeposit,
		Channel:    shared.ChannelGateway,
		Status:     shared.TransactionStatusCompleted,
		Reference:  "pay_123",
		CreatedAt:  time.Now().UTC(),
	}
	query := regexp.QuoteMeta("WHERE type = $1 AND reference = $2")

	mock.ExpectQuery(query).WithArgs(shared.TransactionTypeExternalDeposit, "pay_123").WillReturnRows(transactionRows(tx))
	got, err := repo.GetExternalDeposit(ctx, "pay_123")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Nil(t, got.SenderID)

	mock.ExpectQuery(query).WithArgs(shared.TransactionTypeExternalDeposit, "pay_404").WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetExternalDeposit(ctx, "pay_404")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound{})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListAndCountByAccount(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TransactionRepository{querier: mock, logger: newTestLogger()}
	first, second := testTransfer(), testTransfer()
	accountID := *first.SenderID

	mock.ExpectQuery(regexp.QuoteMeta("WHERE sender_id = $1 OR receiver_id = $1")).
		WithArgs(accountID, 10, 0).
		WillReturnRows(transactionRows(first, second))

	txs, err := repo.ListByAccount(ctx, accountID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, first.ID, txs[0].ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM ledger_transactions")).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	count, err := repo.CountByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	dbErr := errors.New("db down")
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).WithArgs(accountID, 10, 0).WillReturnError(dbErr)
	_, err = repo.ListByAccount(ctx, accountID, 10, 0)
	assert.ErrorIs(t, err, dbErr)

	assert.NoError(t, mock.ExpectationsWereMet())
}
