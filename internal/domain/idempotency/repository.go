package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateKey is returned by Reserve when another transaction holds the key
var ErrDuplicateKey = errors.New("idempotency key already reserved")

// Repository is the durable store of idempotency records. A record is
// identified by its scope and key together; the same key may be used once in
// every scope.
type Repository interface {
	// Reserve inserts an in-progress record; ErrDuplicateKey when the scope and key exist
	Reserve(ctx context.Context, record *Record) error
	Complete(ctx context.Context, scope, key string, transactionID uuid.UUID, at time.Time) error
	Get(ctx context.Context, scope, key string) (*Record, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ErrRecordNotFound indicates no record exists for a key
type ErrRecordNotFound struct {
	Key string
}

func (e ErrRecordNotFound) Error() string {
	return "idempotency record not found: " + e.Key
}

// Is matches any ErrRecordNotFound when the target has an empty key
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}
