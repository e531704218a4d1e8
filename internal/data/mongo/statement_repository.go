package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/shared"
)

const (
	// StatementCollectionName is the name of the statement projection collection in MongoDB
	StatementCollectionName = "statement_lines"
)

// statementDocument is the stored shape of a statement line. Ids are strings
// and amounts Decimal128 so the collection reads naturally in the shell.
type statementDocument struct {
	TransactionID  string               `bson:"transaction_id"`
	AccountID      string               `bson:"account_id"`
	Direction      string               `bson:"direction"`
	Amount         primitive.Decimal128 `bson:"amount"`
	CounterpartyID string               `bson:"counterparty_id,omitempty"`
	Type           string               `bson:"type"`
	Channel        string               `bson:"channel"`
	Description    string               `bson:"description"`
	Reference      string               `bson:"reference,omitempty"`
	Timestamp      time.Time            `bson:"timestamp"`
}

// StatementRepository implements ledger.StatementRepository for MongoDB
type StatementRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

var _ ledger.StatementRepository = (*StatementRepository)(nil)

func NewStatementRepository(logger *slog.Logger, db *mongo.Database) *StatementRepository {
	return &StatementRepository{
		db:     db,
		logger: logger,
	}
}

func (r *StatementRepository) collection() *mongo.Collection {
	return r.db.Collection(StatementCollectionName)
}

// EnsureIndexes creates the uniqueness and listing indexes
func (r *StatementRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}, {Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("ux_statement_transaction_account"),
		},
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("ix_statement_account_timestamp"),
		},
	})
	if err != nil {
		r.logger.Error("Failed to create statement indexes", "error", err)
		return fmt.Errorf("failed to create statement indexes: %w", err)
	}
	return nil
}

// Upsert writes line keyed by (transaction, account). Replaying the same line is a no-op.
func (r *StatementRepository) Upsert(ctx context.Context, line *ledger.StatementLine) error {
	doc, err := toDocument(line)
	if err != nil {
		return err
	}

	filter := bson.M{"transaction_id": doc.TransactionID, "account_id": doc.AccountID}
	_, err = r.collection().ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to upsert statement line",
			"transaction_id", doc.TransactionID,
			"account_id", doc.AccountID,
			"error", err)
		return fmt.Errorf("failed to upsert statement line: %w", err)
	}
	return nil
}

// ListByAccount returns the account's lines in [from, to), newest first. A
// zero bound is open.
func (r *StatementRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit, offset int) ([]*ledger.StatementLine, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "transaction_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection().Find(ctx, rangeFilter(accountID, from, to), opts)
	if err != nil {
		r.logger.Error("Failed to get statement lines",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get statement lines: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []statementDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode statement lines",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode statement lines: %w", err)
	}

	lines := make([]*ledger.StatementLine, 0, len(docs))
	for i := range docs {
		line, err := fromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// CountByAccount counts the account's lines in [from, to)
func (r *StatementRepository) CountByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error) {
	count, err := r.collection().CountDocuments(ctx, rangeFilter(accountID, from, to))
	if err != nil {
		r.logger.Error("Failed to count statement lines",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count statement lines: %w", err)
	}
	return count, nil
}

func rangeFilter(accountID uuid.UUID, from, to time.Time) bson.M {
	filter := bson.M{"account_id": accountID.String()}
	window := bson.M{}
	if !from.IsZero() {
		window["$gte"] = from
	}
	if !to.IsZero() {
		window["$lt"] = to
	}
	if len(window) > 0 {
		filter["timestamp"] = window
	}
	return filter
}

func toDocument(line *ledger.StatementLine) (*statementDocument, error) {
	amount, err := primitive.ParseDecimal128(line.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("failed to encode amount %s: %w", line.Amount, err)
	}

	doc := &statementDocument{
		TransactionID: line.TransactionID.String(),
		AccountID:     line.AccountID.String(),
		Direction:     string(line.Direction),
		Amount:        amount,
		Type:          string(line.Type),
		Channel:       string(line.Channel),
		Description:   line.Description,
		Reference:     line.Reference,
		Timestamp:     line.Timestamp.UTC(),
	}
	if line.CounterpartyID != nil {
		doc.CounterpartyID = line.CounterpartyID.String()
	}
	return doc, nil
}

func fromDocument(doc *statementDocument) (*ledger.StatementLine, error) {
	txID, err := uuid.Parse(doc.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction_id in statement line: %w", err)
	}
	accountID, err := uuid.Parse(doc.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account_id in statement line: %w", err)
	}
	amount, err := decimal.NewFromString(doc.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("invalid amount in statement line: %w", err)
	}

	line := &ledger.StatementLine{
		TransactionID: txID,
		AccountID:     accountID,
		Direction:     ledger.Direction(doc.Direction),
		Amount:        amount,
		Type:          shared.TransactionType(doc.Type),
		Channel:       shared.Channel(doc.Channel),
		Description:   doc.Description,
		Reference:     doc.Reference,
		Timestamp:     doc.Timestamp,
	}
	if doc.CounterpartyID != "" {
		counterparty, err := uuid.Parse(doc.CounterpartyID)
		if err != nil {
			return nil, fmt.Errorf("invalid counterparty_id in statement line: %w", err)
		}
		line.CounterpartyID = &counterparty
	}
	return line, nil
}
