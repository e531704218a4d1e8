// Package token_vault issues and redeems single-use cash tokens. Issuing a
// withdrawal token checks the balance but reserves nothing; the balance is
// checked again, under lock, when the token is redeemed.
package token_vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/domain/token"
	"github.com/mybank-ledger/internal/ledger_core/store"
	"github.com/mybank-ledger/internal/platform/metrics"
	"github.com/mybank-ledger/internal/platform/security"
)

const (
	DefaultTTL             = 15 * time.Minute
	DefaultMaxCodeAttempts = 10
)

// Config tunes token lifetime and code allocation
type Config struct {
	TTL             time.Duration
	MaxCodeAttempts int
}

// Redemption is a redeemed token and the transaction that moved its value
type Redemption struct {
	Token       *token.CashToken    `json:"token"`
	Transaction *ledger.Transaction `json:"transaction"`
}

// Status is what an owner may see about one of their tokens
type Status struct {
	Code      string          `json:"code"`
	Kind      token.Kind      `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Used      bool            `json:"used"`
	Expired   bool            `json:"expired"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	UsedAt    *time.Time      `json:"used_at,omitempty"`
}

type Vault struct {
	ledger   *store.Store
	hasher   security.PINHasher
	logger   *slog.Logger
	cfg      Config
	generate CodeGenerator
}

type Option func(*Vault)

// WithCodeGenerator replaces RandomCode
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(v *Vault) { v.generate = gen }
}

func NewVault(logger *slog.Logger, ledgerStore *store.Store, hasher security.PINHasher, cfg Config, opts ...Option) *Vault {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = DefaultMaxCodeAttempts
	}

	v := &Vault{
		ledger:   ledgerStore,
		hasher:   hasher,
		logger:   logger,
		cfg:      cfg,
		generate: RandomCode,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// IssueWithdrawToken creates a withdrawal code for accountID after checking
// the PIN and the current balance.
func (v *Vault) IssueWithdrawToken(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, pin string) (t *token.CashToken, err error) {
	defer func() { metrics.ObserveTokenOperation("issue_withdraw", err) }()

	if err := money.ValidatePositive(amount); err != nil {
		return nil, err
	}

	acc, err := v.ledger.Transactor().Reader().Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.IsArchived() {
		return nil, account.ErrAccountArchived
	}
	if !acc.HasPIN() {
		return nil, account.ErrPINNotSet
	}
	if !v.hasher.Matches(acc.PINHash, pin) {
		return nil, account.ErrInvalidAuthorization
	}
	if !acc.CanDebit(amount) {
		return nil, account.ErrInsufficientFunds
	}

	t, err = v.issue(ctx, func(code string, now time.Time) *token.CashToken {
		return token.NewWithdrawToken(code, accountID, amount, now, v.cfg.TTL)
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("Withdraw token issued",
		"token_id", t.ID.String(),
		"account_id", accountID.String(),
		"code", token.MaskCode(t.Code),
		"amount", money.Format(amount),
	)
	return t, nil
}

// IssueDepositToken creates a deposit code that any account may claim once
func (v *Vault) IssueDepositToken(ctx context.Context, amount decimal.Decimal) (t *token.CashToken, err error) {
	defer func() { metrics.ObserveTokenOperation("issue_deposit", err) }()

	if err := money.ValidatePositive(amount); err != nil {
		return nil, err
	}

	t, err = v.issue(ctx, func(code string, now time.Time) *token.CashToken {
		return token.NewDepositToken(code, amount, now, v.cfg.TTL)
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("Deposit token issued",
		"token_id", t.ID.String(),
		"code", token.MaskCode(t.Code),
		"amount", money.Format(amount),
	)
	return t, nil
}

// issue draws codes until one is free among unused tokens
func (v *Vault) issue(ctx context.Context, build func(code string, now time.Time) *token.CashToken) (*token.CashToken, error) {
	var issued *token.CashToken
	err := v.ledger.Transactor().WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		for attempt := 1; attempt <= v.cfg.MaxCodeAttempts; attempt++ {
			code, err := v.generate()
			if err != nil {
				return err
			}

			t := build(code, v.ledger.Now())
			err = uow.Tokens().Insert(ctx, t)
			if errors.Is(err, token.ErrCodeCollision) {
				v.logger.Debug("Token code collision, retrying", "attempt", attempt)
				continue
			}
			if err != nil {
				return err
			}
			issued = t
			return nil
		}
		return token.ErrResourceExhausted
	})
	if err != nil {
		if errors.Is(err, token.ErrResourceExhausted) {
			v.logger.Error("Token code space exhausted", "attempts", v.cfg.MaxCodeAttempts)
		}
		return nil, err
	}
	return issued, nil
}

// RedeemWithdrawToken debits the token owner and marks the token used in one
// unit of work. A balance that fell below the amount since issue fails with
// account.ErrInsufficientFunds and leaves the token redeemable.
func (v *Vault) RedeemWithdrawToken(ctx context.Context, code string) (r *Redemption, err error) {
	defer func() { metrics.ObserveTokenOperation("redeem_withdraw", err) }()

	if err := token.ValidateCode(code); err != nil {
		return nil, err
	}

	r, err = v.redeem(ctx, code, token.KindWithdraw, func(t *token.CashToken) (uuid.UUID, decimal.Decimal, ledger.Draft) {
		return *t.AccountID, t.Amount.Neg(), ledger.Draft{
			Type:          shared.TransactionTypeATMWithdrawal,
			Channel:       shared.ChannelATM,
			Description:   "ATM Cash Out - Token " + code,
			Reference:     t.ID.String(),
			CorrelationID: shared.CorrelationID(ctx),
		}
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("Withdraw token redeemed",
		"token_id", r.Token.ID.String(),
		"transaction_id", r.Transaction.ID.String(),
	)
	return r, nil
}

// RedeemDepositToken credits accountID with the token amount and links the
// token to it.
func (v *Vault) RedeemDepositToken(ctx context.Context, code string, accountID uuid.UUID) (r *Redemption, err error) {
	defer func() { metrics.ObserveTokenOperation("redeem_deposit", err) }()

	if err := token.ValidateCode(code); err != nil {
		return nil, err
	}

	r, err = v.redeem(ctx, code, token.KindDeposit, func(t *token.CashToken) (uuid.UUID, decimal.Decimal, ledger.Draft) {
		return accountID, t.Amount, ledger.Draft{
			Type:          shared.TransactionTypeATMDeposit,
			Channel:       shared.ChannelATM,
			Description:   "Cash Deposit Claimed | Ref: " + code,
			Reference:     t.ID.String(),
			CorrelationID: shared.CorrelationID(ctx),
		}
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("Deposit token redeemed",
		"token_id", r.Token.ID.String(),
		"account_id", accountID.String(),
		"transaction_id", r.Transaction.ID.String(),
	)
	return r, nil
}

type movement func(t *token.CashToken) (accountID uuid.UUID, delta decimal.Decimal, draft ledger.Draft)

func (v *Vault) redeem(ctx context.Context, code string, kind token.Kind, move movement) (*Redemption, error) {
	var out *Redemption
	err := v.ledger.Transactor().WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		t, err := uow.Tokens().LockForRedemption(ctx, code, kind)
		if err != nil {
			return err
		}

		now := v.ledger.Now()
		if err := t.CheckRedeemable(now); err != nil {
			return err
		}

		accountID, delta, draft := move(t)
		tx, err := v.ledger.ApplyMutation(ctx, uow, accountID, delta, draft)
		if err != nil {
			return err
		}

		if err := t.MarkRedeemed(accountID, tx.ID, now); err != nil {
			return err
		}
		if err := uow.Tokens().MarkUsed(ctx, t); err != nil {
			return err
		}

		out = &Redemption{Token: t, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TokenStatus reports a token owned by accountID. Tokens of other accounts
// are indistinguishable from unknown codes.
func (v *Vault) TokenStatus(ctx context.Context, code string, accountID uuid.UUID) (*Status, error) {
	if err := token.ValidateCode(code); err != nil {
		return nil, err
	}

	t, err := v.ledger.Transactor().Reader().Tokens().GetForAccount(ctx, code, accountID)
	if err != nil {
		return nil, err
	}

	return &Status{
		Code:      t.Code,
		Kind:      t.Kind,
		Amount:    t.Amount,
		Used:      t.Used,
		Expired:   !t.Used && t.IsExpired(v.ledger.Now()),
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
		UsedAt:    t.UsedAt,
	}, nil
}

// ArchiveExpired moves expired unused tokens out of the live set
func (v *Vault) ArchiveExpired(ctx context.Context) (int64, error) {
	var moved int64
	err := v.ledger.Transactor().WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		var err error
		moved, err = uow.Tokens().ArchiveExpired(ctx, v.ledger.Now())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to archive expired tokens: %w", err)
	}
	return moved, nil
}
