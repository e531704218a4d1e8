// Package idempotency makes ledger-mutating operations safe to retry. A key is
// reserved inside the same unit of work as the operation's writes, so either
// both commit or neither does.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	idem "github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/ledger_core/store"
	"github.com/mybank-ledger/internal/platform/metrics"
)

// Request identifies one logical operation. Keys are unique per Scope; a
// non-empty Owner further confines the key to one caller, so two callers
// choosing the same key never collide.
type Request struct {
	Key         string
	Scope       string
	Owner       string
	Fingerprint string
}

// storedKey is the key persisted in the durable record
func (r Request) storedKey() string {
	if r.Owner == "" {
		return r.Key
	}
	return r.Owner + ":" + r.Key
}

// cacheKey is unique across scopes. Scopes never contain ':'.
func (r Request) cacheKey() string {
	return r.Scope + ":" + r.storedKey()
}

// Operation performs the guarded writes inside uow and returns the transaction it recorded
type Operation func(ctx context.Context, uow store.UnitOfWork) (*ledger.Transaction, error)

// Outcome is the result of a guarded operation. Replayed is true when the
// transaction was recorded by an earlier call with the same key.
type Outcome struct {
	Transaction *ledger.Transaction
	Replayed    bool
}

// Entry is what the cache keeps for a committed key
type Entry struct {
	Scope       string              `json:"scope"`
	Fingerprint string              `json:"fingerprint"`
	Transaction *ledger.Transaction `json:"transaction"`
}

// Cache is an optional fast path in front of the durable records. A miss is
// reported as (nil, nil). Implementations may fail freely; the guard falls
// back to the durable store.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry) error
	// Acquire sets a short-lived in-flight marker and returns the lease that
	// owns it. An empty lease means another caller holds the marker.
	Acquire(ctx context.Context, key string) (string, error)
	// Release clears the marker only while it is still owned by lease
	Release(ctx context.Context, key, lease string) error
}

type Guard struct {
	transactor store.Transactor
	cache      Cache
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Guard)

// WithCache enables the fast path
func WithCache(cache Cache) Option {
	return func(g *Guard) { g.cache = cache }
}

// WithClock overrides the time source used to stamp records
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func NewGuard(logger *slog.Logger, transactor store.Transactor, opts ...Option) *Guard {
	g := &Guard{
		transactor: transactor,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ExecuteOnce runs op at most once per key. A key already bound to a committed
// transaction is replayed without calling op; a key bound to a different
// request fails with ErrKeyReuse. A concurrent first use of the same key
// either replays the winner's result or fails with ErrDuplicateInFlight.
func (g *Guard) ExecuteOnce(ctx context.Context, req Request, op Operation) (*Outcome, error) {
	if err := idem.ValidateKey(req.Key); err != nil {
		return nil, err
	}

	outcome, err := g.Lookup(ctx, req)
	if err != nil || outcome != nil {
		return outcome, err
	}

	if g.cache != nil {
		lease, err := g.cache.Acquire(ctx, req.cacheKey())
		switch {
		case err != nil:
			g.logger.Warn("Idempotency cache unavailable, using durable path", "scope", req.Scope, "error", err)
		case lease == "":
			return nil, idem.ErrDuplicateInFlight
		default:
			defer g.release(req, lease)
		}
	}

	var tx *ledger.Transaction
	err = g.transactor.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		if err := uow.Idempotency().Reserve(ctx, idem.NewRecord(req.storedKey(), req.Scope, req.Fingerprint, g.now())); err != nil {
			return err
		}

		var err error
		tx, err = op(ctx, uow)
		if err != nil {
			return err
		}
		return uow.Idempotency().Complete(ctx, req.Scope, req.storedKey(), tx.ID, g.now())
	})
	if errors.Is(err, idem.ErrDuplicateKey) {
		return g.resolveLostRace(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	g.remember(ctx, req, tx)
	return &Outcome{Transaction: tx}, nil
}

// Lookup returns the recorded outcome for req, or nil when the key is unseen.
func (g *Guard) Lookup(ctx context.Context, req Request) (*Outcome, error) {
	if err := idem.ValidateKey(req.Key); err != nil {
		return nil, err
	}

	if g.cache != nil {
		entry, err := g.cache.Get(ctx, req.cacheKey())
		if err != nil {
			g.logger.Warn("Idempotency cache read failed", "scope", req.Scope, "error", err)
		} else if entry != nil {
			if entry.Scope != req.Scope || entry.Fingerprint != req.Fingerprint {
				return nil, idem.ErrKeyReuse
			}
			metrics.ObserveReplay(req.Scope)
			return &Outcome{Transaction: entry.Transaction, Replayed: true}, nil
		}
	}

	reader := g.transactor.Reader()
	record, err := reader.Idempotency().Get(ctx, req.Scope, req.storedKey())
	if errors.Is(err, idem.ErrRecordNotFound{}) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !record.Matches(req.Scope, req.Fingerprint) {
		return nil, idem.ErrKeyReuse
	}
	if record.Status != idem.StatusCompleted || record.TransactionID == nil {
		return nil, idem.ErrDuplicateInFlight
	}

	tx, err := reader.Transactions().GetByID(ctx, *record.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load replayed transaction: %w", err)
	}

	g.remember(ctx, req, tx)
	metrics.ObserveReplay(req.Scope)
	return &Outcome{Transaction: tx, Replayed: true}, nil
}

// PurgeBefore deletes records created before cutoff
func (g *Guard) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := g.transactor.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		var err error
		purged, err = uow.Idempotency().PurgeBefore(ctx, cutoff)
		return err
	})
	return purged, err
}

// resolveLostRace handles a reservation that collided with another caller's
// committed or still-open reservation.
func (g *Guard) resolveLostRace(ctx context.Context, req Request) (*Outcome, error) {
	outcome, err := g.Lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	if outcome == nil {
		return nil, idem.ErrDuplicateInFlight
	}
	return outcome, nil
}

func (g *Guard) remember(ctx context.Context, req Request, tx *ledger.Transaction) {
	if g.cache == nil {
		return
	}
	entry := &Entry{Scope: req.Scope, Fingerprint: req.Fingerprint, Transaction: tx}
	if err := g.cache.Put(ctx, req.cacheKey(), entry); err != nil {
		g.logger.Warn("Failed to cache idempotent outcome", "scope", req.Scope, "error", err)
	}
}

func (g *Guard) release(req Request, lease string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.cache.Release(ctx, req.cacheKey(), lease); err != nil {
		g.logger.Warn("Failed to release in-flight marker", "scope", req.Scope, "error", err)
	}
}
