package components

import (
	"log/slog"

	"github.com/mybank-ledger/internal/config"
	"github.com/mybank-ledger/internal/ledger_processor/service"
)

// CreateProcessingService wraps the deposit applier in a worker pool sized by
// cfg. Without a usable pool size it returns the unpooled service.
func CreateProcessingService(
	applier service.DepositApplier,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	baseService := service.NewProcessingService(applier, logger.With("component", "deposit_processor"))

	if cfg.WorkerPool.Size <= 0 {
		logger.Warn("Worker pool disabled, processing deposits inline", "pool_size", cfg.WorkerPool.Size)
		return baseService
	}

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
