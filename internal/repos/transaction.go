package repos

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/intec-ai/intec-backend/internal/logger"
)

// TransactionRepo is the aggregation executor over the pump supply
// records. Pipelines arrive fully concretized (no date placeholders)
// and run verbatim; a store failure is fatal to the calling turn.
type TransactionRepo interface {
	Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error)
	InsertMany(ctx context.Context, docs []interface{}) (int64, error)
}

type transactionRepo struct {
	collection *mongo.Collection
	log        *logger.Logger
}

func NewTransactionRepo(collection *mongo.Collection, baseLog *logger.Logger) TransactionRepo {
	return &transactionRepo{
		collection: collection,
		log:        baseLog.With("repo", "TransactionRepo"),
	}
}

func (tr *transactionRepo) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	cursor, err := tr.collection.Aggregate(ctx, pipeline)
	if err != nil {
		tr.log.Error("failed to run aggregation pipeline", "error", err)
		return nil, fmt.Errorf("failed to run aggregation pipeline: %w", err)
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		tr.log.Error("failed to decode aggregation results", "error", err)
		return nil, fmt.Errorf("failed to decode aggregation results: %w", err)
	}
	return results, nil
}

func (tr *transactionRepo) InsertMany(ctx context.Context, docs []interface{}) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	res, err := tr.collection.InsertMany(ctx, docs)
	if err != nil {
		tr.log.Error("failed to bulk insert transactions", "error", err)
		return 0, fmt.Errorf("failed to bulk insert transactions: %w", err)
	}
	return int64(len(res.InsertedIDs)), nil
}
