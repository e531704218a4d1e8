package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mybank-ledger/internal/config"
)

var (
	topicCheckAttempts = 5
	topicCheckDelay    = 2 * time.Second
)

// topicAdmin is the part of *kafka.Conn used to provision topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// provisionTopic dials the first broker and makes sure topic exists
func provisionTopic(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return ensureTopic(ctx, conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
}

// ensureTopic creates topic when no partitions can be read for it. Partition
// reads are retried because a freshly started broker reports metadata late.
func ensureTopic(ctx context.Context, admin topicAdmin, topic string, partitions, replication int, logger *slog.Logger) error {
	logger = logger.With("topic", topic)

	var lastErr error
	for attempt := 1; attempt <= topicCheckAttempts; attempt++ {
		found, err := admin.ReadPartitions(topic)
		if err == nil && len(found) > 0 {
			logger.Debug("Kafka topic already exists", "partitions", len(found))
			return nil
		}
		lastErr = err
		if err == nil {
			break
		}
		logger.Warn("Failed to read topic partitions, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(topicCheckDelay):
		}
	}

	if partitions <= 0 {
		partitions = 1
	}
	if replication <= 0 {
		replication = 1
	}

	logger.Info("Creating Kafka topic",
		"partitions", partitions,
		"replication_factor", replication,
		"last_read_error", lastErr,
	)
	if err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}
