package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mybank-ledger/internal/config"
	"github.com/mybank-ledger/internal/domain/shared"
)

var errDLQDisabled = errors.New("DLQ producer not initialized")

// DeadLetter is the envelope written to the DLQ topic. Reason is usually
// "<ERROR_CODE>: <message>"; the code is split out for alerting.
type DeadLetter struct {
	SourceTopic    string `json:"source_topic"`
	OriginalKey    string `json:"original_key"`
	OriginalValue  string `json:"original_value"`
	ErrorCode      string `json:"error_code,omitempty"`
	Reason         string `json:"dlq_reason"`
	CorrelationID  string `json:"correlation_id,omitempty"`
	DeadLetteredAt string `json:"timestamp"`
}

// DLQProducer parks messages the processor can never apply
type DLQProducer struct {
	logger      *slog.Logger
	writer      KafkaWriter
	dlqTopic    string
	sourceTopic string
}

// NewDLQProducer returns a nil producer when cfg.DLQTopic is empty (DLQ disabled)
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured, rejected deposits will only be logged")
		return nil, nil
	}

	if err := provisionTopic(ctx, logger, cfg, cfg.DLQTopic); err != nil {
		return nil, fmt.Errorf("failed to prepare DLQ topic %s: %w", cfg.DLQTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &DLQProducer{
		logger:      logger,
		writer:      writer,
		dlqTopic:    cfg.DLQTopic,
		sourceTopic: cfg.DepositTopic,
	}, nil
}

func (p *DLQProducer) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	if p == nil || p.writer == nil {
		return errDLQDisabled
	}

	letter := DeadLetter{
		SourceTopic:    p.sourceTopic,
		OriginalKey:    key,
		OriginalValue:  string(originalMessageValue),
		ErrorCode:      reasonCode(reason),
		Reason:         reason,
		CorrelationID:  shared.CorrelationID(ctx),
		DeadLetteredAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	headers := []kafka.Header{{Key: "dlq-reason", Value: []byte(reason)}}
	if letter.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: CorrelationHeader, Value: []byte(letter.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value, Headers: headers}); err != nil {
		p.logger.Error("Failed to publish message to DLQ",
			"topic", p.dlqTopic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to DLQ %s: %w", p.dlqTopic, err)
	}

	p.logger.Warn("Message moved to DLQ",
		"topic", p.dlqTopic,
		"key", key,
		"error_code", letter.ErrorCode,
		"correlation_id", letter.CorrelationID,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ producer", "topic", p.dlqTopic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}

// reasonCode extracts an upper-case error code prefix from reason, if any
func reasonCode(reason string) string {
	code, _, found := strings.Cut(reason, ": ")
	if !found || code == "" || strings.ToUpper(code) != code || strings.ContainsAny(code, " \t") {
		return ""
	}
	return code
}
