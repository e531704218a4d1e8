// Package maintenance runs the periodic housekeeping of the ledger: expired
// cash tokens, old idempotency records and projected outbox rows.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/mybank-ledger/internal/config"
)

// TokenArchiver moves expired cash tokens out of the live table
type TokenArchiver interface {
	ArchiveExpired(ctx context.Context) (int64, error)
}

// IdempotencyPurger deletes idempotency records created before cutoff
type IdempotencyPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxCleaner deletes processed outbox messages created before cutoff
type OutboxCleaner interface {
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor runs every housekeeping job once per interval. A failing job is
// logged and does not stop the others.
type Janitor struct {
	tokens            TokenArchiver
	idempotency       IdempotencyPurger
	outbox            OutboxCleaner
	logger            *slog.Logger
	interval          time.Duration
	idempotencyMaxAge time.Duration
	outboxRetention   time.Duration
	now               func() time.Time
}

func NewJanitor(
	cfg *config.Config,
	tokens TokenArchiver,
	idempotency IdempotencyPurger,
	outbox OutboxCleaner,
	logger *slog.Logger,
) *Janitor {
	return &Janitor{
		tokens:            tokens,
		idempotency:       idempotency,
		outbox:            outbox,
		logger:            logger,
		interval:          cfg.Maintenance.Interval,
		idempotencyMaxAge: cfg.Idempotency.Retention,
		outboxRetention:   cfg.Outbox.Retention,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the jobs until ctx is canceled
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Starting maintenance janitor",
		"interval", j.interval.String(),
		"idempotency_retention", j.idempotencyMaxAge.String(),
		"outbox_retention", j.outboxRetention.String(),
	)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Maintenance janitor stopping due to context cancellation.")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job a single time
func (j *Janitor) RunOnce(ctx context.Context) {
	now := j.now()

	if n, err := j.tokens.ArchiveExpired(ctx); err != nil {
		j.logger.Error("Failed to archive expired tokens", "error", err)
	} else if n > 0 {
		j.logger.Info("Archived expired tokens", "count", n)
	}

	// zero retention keeps idempotency records forever
	if j.idempotencyMaxAge > 0 {
		if n, err := j.idempotency.PurgeBefore(ctx, now.Add(-j.idempotencyMaxAge)); err != nil {
			j.logger.Error("Failed to purge idempotency records", "error", err)
		} else if n > 0 {
			j.logger.Info("Purged idempotency records", "count", n)
		}
	}

	if j.outboxRetention > 0 {
		if n, err := j.outbox.DeleteProcessedBefore(ctx, now.Add(-j.outboxRetention)); err != nil {
			j.logger.Error("Failed to delete processed outbox messages", "error", err)
		} else if n > 0 {
			j.logger.Info("Deleted processed outbox messages", "count", n)
		}
	}
}
