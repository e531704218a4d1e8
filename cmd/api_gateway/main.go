package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/mybank-ledger/internal/api_gateway"
	"github.com/mybank-ledger/internal/api_gateway/service"
	"github.com/mybank-ledger/internal/config"
	"github.com/mybank-ledger/internal/data/cache"
	"github.com/mybank-ledger/internal/data/mongo"
	"github.com/mybank-ledger/internal/data/postgres"
	"github.com/mybank-ledger/internal/ledger_core/idempotency"
	"github.com/mybank-ledger/internal/ledger_core/store"
	"github.com/mybank-ledger/internal/ledger_core/token_vault"
	"github.com/mybank-ledger/internal/ledger_core/transfer"
	"github.com/mybank-ledger/internal/logger"
	"github.com/mybank-ledger/internal/platform/persistence"
	"github.com/mybank-ledger/internal/platform/security"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	var guardOpts []idempotency.Option
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = persistence.NewRedisClient(appCtx, log, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		guardOpts = append(guardOpts, idempotency.WithCache(
			cache.NewIdempotencyCache(log, redisClient, cfg.Idempotency.CacheTTL, cfg.Idempotency.LockTTL),
		))
	}

	transactor := postgres.NewTransactor(log, postgresDB)
	statements := mongo.NewStatementRepository(log, mongoDB.Database())
	hasher := security.NewBcryptHasher(cfg.Account.BcryptCost)

	ledgerStore := store.New(log, transactor)
	guard := idempotency.NewGuard(log, transactor, guardOpts...)

	accountService := service.NewAccountService(log, transactor, statements, hasher, service.AccountConfig{
		UPIHandle: cfg.Account.UPIHandle,
	})
	transferEngine := transfer.NewEngine(log, ledgerStore, guard, hasher, transfer.Config{
		MinAmount: cfg.Transfer.MinAmount,
	})
	vault := token_vault.NewVault(log, ledgerStore, hasher, token_vault.Config{
		TTL:             cfg.Token.TTL,
		MaxCodeAttempts: cfg.Token.MaxCodeAttempts,
	})

	server := api_gateway.NewServer(log, cfg, accountService, transferEngine, vault)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain in-flight requests before closing the pools they use
	var shutdownErr error
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", "error", err)
			shutdownErr = err
		}
	}

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
