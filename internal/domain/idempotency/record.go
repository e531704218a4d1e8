package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mybank-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrMissingKey        = shared.NewError(shared.ClassValidation, "IDEMPOTENCY_KEY_REQUIRED", "idempotency key is required")
	ErrKeyTooLong        = shared.NewError(shared.ClassValidation, "IDEMPOTENCY_KEY_TOO_LONG", "idempotency key must be at most 255 characters")
	ErrDuplicateInFlight = shared.NewError(shared.ClassConflict, "DUPLICATE_IN_FLIGHT", "a request with this idempotency key is already in progress")
	ErrKeyReuse          = shared.NewError(shared.ClassConflict, "IDEMPOTENCY_KEY_REUSED", "idempotency key was already used with a different request")
)

// MaxKeyLength bounds caller-supplied keys
const MaxKeyLength = 255

// Status of an idempotency record
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Record maps a caller-supplied key to the ledger transaction it produced
type Record struct {
	Key           string     `json:"key"`
	Scope         string     `json:"scope"`
	Fingerprint   string     `json:"fingerprint"`
	Status        Status     `json:"status"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewRecord creates an in-progress reservation
func NewRecord(key, scope, fingerprint string, now time.Time) *Record {
	return &Record{
		Key:         key,
		Scope:       scope,
		Fingerprint: fingerprint,
		Status:      StatusInProgress,
		CreatedAt:   now,
	}
}

// Complete attaches the resulting transaction
func (r *Record) Complete(transactionID uuid.UUID, now time.Time) {
	r.Status = StatusCompleted
	r.TransactionID = &transactionID
	r.CompletedAt = &now
}

// Matches reports whether a replayed request carries the same scope and payload
func (r *Record) Matches(scope, fingerprint string) bool {
	return r.Scope == scope && r.Fingerprint == fingerprint
}

// ValidateKey checks a caller-supplied key
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrMissingKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// Fingerprint hashes the identifying parts of a request so a reused key with a
// different payload can be told apart from a genuine retry.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
