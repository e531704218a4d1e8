package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/token"
	"github.com/mybank-ledger/internal/ledger_core/token_vault"
	"github.com/mybank-ledger/internal/ledger_core/transfer"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// Open creates an account with a zero balance, a fresh account number and a UPI alias.
	// Returns ErrDuplicateAccount when the username or phone is taken.
	Open(ctx context.Context, input OpenAccountInput) (*account.Account, error)

	// SetPIN replaces the transaction PIN. Both entries must match.
	SetPIN(ctx context.Context, accountID uuid.UUID, pin, confirm string) error

	// Dashboard returns the account and its most recent transactions
	Dashboard(ctx context.Context, accountID uuid.UUID) (*Dashboard, error)

	// Transactions returns one page of the account's ledger history and the total count
	Transactions(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Transaction, int64, error)

	// Statement returns one page of statement lines in [from, to) and the total count
	Statement(ctx context.Context, accountID uuid.UUID, from, to time.Time, page, perPage int) ([]*ledger.StatementLine, int64, error)

	// Archive closes the account to new mutations. Accounts are never deleted.
	Archive(ctx context.Context, accountID uuid.UUID) error
}

// TransferService moves money between two accounts
type TransferService interface {
	Transfer(ctx context.Context, req transfer.Request) (*transfer.Result, error)
}

// TokenService issues and redeems cash tokens
type TokenService interface {
	IssueWithdrawToken(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, pin string) (*token.CashToken, error)
	IssueDepositToken(ctx context.Context, amount decimal.Decimal) (*token.CashToken, error)
	RedeemWithdrawToken(ctx context.Context, code string) (*token_vault.Redemption, error)
	RedeemDepositToken(ctx context.Context, code string, accountID uuid.UUID) (*token_vault.Redemption, error)
	TokenStatus(ctx context.Context, code string, accountID uuid.UUID) (*token_vault.Status, error)
}

var (
	_ TransferService = (*transfer.Engine)(nil)
	_ TokenService    = (*token_vault.Vault)(nil)
)
