package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/ledger_core/store"
	"github.com/mybank-ledger/internal/platform/security"
)

const (
	accountNumberDigits   = 10
	maxAccountNumberTries = 5
	dashboardSize         = 10
)

var (
	ErrEmptyUsername        = shared.NewError(shared.ClassValidation, "INVALID_USERNAME", "username cannot be empty")
	ErrInvalidUsername      = shared.NewError(shared.ClassValidation, "INVALID_USERNAME", "username may only contain letters, digits, dots, dashes and underscores")
	ErrAccountNumberSpace   = shared.NewError(shared.ClassResourceExhausted, "ACCOUNT_NUMBER_EXHAUSTED", "could not allocate a unique account number")
	accountNumberUpperBound = new(big.Int).Exp(big.NewInt(10), big.NewInt(accountNumberDigits), nil)
)

// OpenAccountInput carries the caller's account opening details
type OpenAccountInput struct {
	Username string
	Phone    string
	Type     string
	PIN      string
}

// Dashboard is the account snapshot shown to its holder
type Dashboard struct {
	Account    *account.Account
	Recent     []*ledger.Transaction
	PaymentURI string
}

// AccountConfig holds account opening policy
type AccountConfig struct {
	UPIHandle string
}

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	transactor     store.Transactor
	statements     ledger.StatementRepository
	hasher         security.PINHasher
	logger         *slog.Logger
	cfg            AccountConfig
	accountNumbers func() (string, error)
}

// NewAccountService creates a new account service. statements may be nil when
// the statement projection is not configured.
func NewAccountService(
	logger *slog.Logger,
	transactor store.Transactor,
	statements ledger.StatementRepository,
	hasher security.PINHasher,
	cfg AccountConfig,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		transactor:     transactor,
		statements:     statements,
		hasher:         hasher,
		logger:         logger,
		cfg:            cfg,
		accountNumbers: randomAccountNumber,
	}
}

// Open creates a new account, retrying account number collisions
func (s *AccountServiceImpl) Open(ctx context.Context, input OpenAccountInput) (*account.Account, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	accountType, err := account.ParseType(input.Type)
	if err != nil {
		return nil, err
	}
	if err := account.ValidatePIN(input.PIN); err != nil {
		return nil, err
	}

	pinHash, err := s.hasher.Hash(input.PIN)
	if err != nil {
		s.logger.Error("Failed to hash PIN during account opening", "error", err)
		return nil, err
	}
	alias := username + "@" + s.cfg.UPIHandle

	for attempt := 1; attempt <= maxAccountNumberTries; attempt++ {
		number, err := s.accountNumbers()
		if err != nil {
			return nil, fmt.Errorf("failed to generate account number: %w", err)
		}

		acc, err := account.NewAccount(username, input.Phone, accountType, number, alias, pinHash)
		if err != nil {
			return nil, err
		}

		err = s.transactor.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
			return uow.Accounts().Create(ctx, acc)
		})
		var duplicate account.ErrDuplicateAccount
		if errors.As(err, &duplicate) && duplicate.Field == "account number" {
			s.logger.Warn("Account number collision, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("Account opened",
			"account_id", acc.ID.String(),
			"upi_alias", acc.UPIAlias,
			"account_type", acc.Type,
		)
		return acc, nil
	}

	return nil, ErrAccountNumberSpace
}

// SetPIN validates and stores a new transaction PIN
func (s *AccountServiceImpl) SetPIN(ctx context.Context, accountID uuid.UUID, pin, confirm string) error {
	if err := account.ValidatePIN(pin); err != nil {
		return err
	}
	if pin != confirm {
		return account.ErrPINMismatch
	}

	hash, err := s.hasher.Hash(pin)
	if err != nil {
		s.logger.Error("Failed to hash PIN", "account_id", accountID.String(), "error", err)
		return err
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		if _, err := uow.Accounts().LockForUpdate(ctx, accountID); err != nil {
			return err
		}
		return uow.Accounts().UpdatePIN(ctx, accountID, hash)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Transaction PIN updated", "account_id", accountID.String())
	return nil
}

// Dashboard returns the account with its ten most recent transactions
func (s *AccountServiceImpl) Dashboard(ctx context.Context, accountID uuid.UUID) (*Dashboard, error) {
	reader := s.transactor.Reader()

	acc, err := reader.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	recent, err := reader.Transactions().ListByAccount(ctx, accountID, dashboardSize, 0)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Account:    acc,
		Recent:     recent,
		PaymentURI: paymentURI(acc),
	}, nil
}

// Transactions returns a page of ledger history, newest first
func (s *AccountServiceImpl) Transactions(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Transaction, int64, error) {
	reader := s.transactor.Reader()

	if _, err := reader.Accounts().GetByID(ctx, accountID); err != nil {
		return nil, 0, err
	}

	txs, err := reader.Transactions().ListByAccount(ctx, accountID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	total, err := reader.Transactions().CountByAccount(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// Statement returns a page of projected statement lines
func (s *AccountServiceImpl) Statement(ctx context.Context, accountID uuid.UUID, from, to time.Time, page, perPage int) ([]*ledger.StatementLine, int64, error) {
	if s.statements == nil {
		return nil, 0, errors.New("statement projection is not configured")
	}
	if _, err := s.transactor.Reader().Accounts().GetByID(ctx, accountID); err != nil {
		return nil, 0, err
	}

	lines, err := s.statements.ListByAccount(ctx, accountID, from, to, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.statements.CountByAccount(ctx, accountID, from, to)
	if err != nil {
		return nil, 0, err
	}
	return lines, total, nil
}

// Archive marks the account archived. Archiving twice is a no-op.
func (s *AccountServiceImpl) Archive(ctx context.Context, accountID uuid.UUID) error {
	return s.transactor.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		acc, err := uow.Accounts().LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.IsArchived() {
			return nil
		}
		if err := uow.Accounts().Archive(ctx, accountID, time.Now().UTC()); err != nil {
			return err
		}
		s.logger.Info("Account archived", "account_id", accountID.String())
		return nil
	})
}

func validateUsername(username string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
		default:
			return ErrInvalidUsername
		}
	}
	return nil
}

// randomAccountNumber returns a uniformly random 10-digit decimal string
func randomAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, accountNumberUpperBound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", accountNumberDigits, n), nil
}

// paymentURI is the UPI deep link a payer's app can scan to pay this account
func paymentURI(acc *account.Account) string {
	q := url.Values{}
	q.Set("pa", acc.UPIAlias)
	q.Set("pn", acc.OwnerName)
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode()
}
