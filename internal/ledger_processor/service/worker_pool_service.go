package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/mybank-ledger/internal/domain/gateway"
)

// WorkerPoolProcessingService implements the ProcessingService interface
// by running each deposit on a bounded ants pool.
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ProcessDeposit submits a deposit to the worker pool and waits for its result.
func (s *WorkerPoolProcessingService) ProcessDeposit(ctx context.Context, deposit gateway.VerifiedDeposit) error {
	logger := s.logger
	if deposit.CorrelationID() != "" {
		logger = s.logger.With("correlation_id", deposit.CorrelationID())
	}

	logger.Debug("Submitting deposit to worker pool", "reference", deposit.Reference())

	// buffered so a worker never blocks after the caller has gone
	resultChan := make(chan error, 1)

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.ProcessDeposit(ctx, deposit)
	})
	if err != nil {
		logger.Error("Failed to submit deposit to worker pool",
			"reference", deposit.Reference(),
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
