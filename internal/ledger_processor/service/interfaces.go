package service

import (
	"context"

	"github.com/mybank-ledger/internal/domain/gateway"
	"github.com/mybank-ledger/internal/domain/ledger"
)

// ProcessingService defines the interface for applying verified gateway deposits.
type ProcessingService interface {
	ProcessDeposit(ctx context.Context, deposit gateway.VerifiedDeposit) error
}

// DepositApplier credits a verified deposit to the ledger
type DepositApplier interface {
	ApplyVerifiedDeposit(ctx context.Context, deposit gateway.VerifiedDeposit) (*ledger.Transaction, error)
}
