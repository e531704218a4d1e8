package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mybank-ledger/internal/config"
	"github.com/mybank-ledger/internal/data/mongo"
	"github.com/mybank-ledger/internal/data/postgres"
	"github.com/mybank-ledger/internal/ledger_core/idempotency"
	"github.com/mybank-ledger/internal/ledger_core/reconciler"
	"github.com/mybank-ledger/internal/ledger_core/store"
	"github.com/mybank-ledger/internal/ledger_core/token_vault"
	"github.com/mybank-ledger/internal/ledger_processor/components"
	"github.com/mybank-ledger/internal/ledger_processor/consumer"
	"github.com/mybank-ledger/internal/ledger_processor/maintenance"
	"github.com/mybank-ledger/internal/ledger_processor/outbox_poller"
	"github.com/mybank-ledger/internal/ledger_processor/service"
	"github.com/mybank-ledger/internal/logger"
	"github.com/mybank-ledger/internal/platform/messaging/consumers"
	"github.com/mybank-ledger/internal/platform/messaging/producers"
	"github.com/mybank-ledger/internal/platform/persistence"
	"github.com/mybank-ledger/internal/platform/security"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	statements := mongo.NewStatementRepository(log, mongoDB.Database())
	if err := statements.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create statement indexes", "error", err)
		os.Exit(1)
	}

	transactor := postgres.NewTransactor(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	ledgerStore := store.New(log, transactor)
	guard := idempotency.NewGuard(log, transactor)
	vault := token_vault.NewVault(log, ledgerStore, security.NewBcryptHasher(cfg.Account.BcryptCost), token_vault.Config{
		TTL:             cfg.Token.TTL,
		MaxCodeAttempts: cfg.Token.MaxCodeAttempts,
	})

	// dlqProducer is nil when no DLQ topic is configured
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	eventProducer, err := producers.NewLedgerEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize ledger event producer", "error", err)
		os.Exit(1)
	}

	processingService := components.CreateProcessingService(
		reconciler.NewReconciler(log, ledgerStore, guard),
		log,
		cfg,
	)

	depositHandler := consumer.NewDepositEventHandler(log, processingService, deadLetters)
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, cfg.Kafka.DepositTopic)

	projector := outbox_poller.NewStatementProjector(outboxRepo, statements, eventProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, projector, log)

	janitor := maintenance.NewJanitor(cfg, vault, guard, outboxRepo, log)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.DepositTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, depositHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()
	go func() {
		defer wg.Done()
		janitor.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// The consumer must stop submitting before the pool goes away
	select {
	case <-kafkaConsumer.Done():
	case <-shutdownCtx.Done():
		log.Warn("Kafka consumer did not stop before the shutdown timeout")
	}

	if wpService, ok := processingService.(*service.WorkerPoolProcessingService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	var shutdownErr error
	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
			shutdownErr = err
		}
	}

	if err := eventProducer.Close(); err != nil {
		log.Error("Error closing ledger event producer", "error", err)
		shutdownErr = err
	}

	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serviceErr != nil {
		log.Error("Ledger Processor shutdown with errors", "error", serviceErr)
	}
	if shutdownErr != nil {
		log.Error("Ledger Processor shutdown completed with errors")
	} else {
		log.Info("Ledger Processor shutdown completed successfully")
	}
}
