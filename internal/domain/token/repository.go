package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrCodeCollision is returned by Insert when the code is held by another unused token
var ErrCodeCollision = errors.New("token code already in use")

// Repository defines cash token persistence operations
type Repository interface {
	// Insert stores an unused token, failing with ErrCodeCollision when the code is taken
	Insert(ctx context.Context, t *CashToken) error

	// LockForRedemption locks the most recent token with code and kind,
	// preferring unused ones. Returns ErrTokenNotFound when none exists.
	LockForRedemption(ctx context.Context, code string, kind Kind) (*CashToken, error)

	// MarkUsed persists the redeemed state set by CashToken.MarkRedeemed
	MarkUsed(ctx context.Context, t *CashToken) error

	// GetForAccount returns the most recent token with code owned by accountID
	GetForAccount(ctx context.Context, code string, accountID uuid.UUID) (*CashToken, error)

	// ArchiveExpired moves unused tokens that expired before now out of the live table
	ArchiveExpired(ctx context.Context, now time.Time) (int64, error)
}
