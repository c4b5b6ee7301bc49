package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/utils"
)

// MongoService owns the connection to the analytical store holding the
// pump supply records the chat pipeline aggregates over.
type MongoService struct {
	log      *logger.Logger
	client   *mongo.Client
	database *mongo.Database
}

func NewMongoService(log *logger.Logger) (*MongoService, error) {
	serviceLog := log.With("service", "MongoService")

	mongoURI := utils.GetEnv("MONGO_URI", "mongodb://localhost:27017", log)
	mongoName := utils.GetEnv("MONGO_NAME", "intec", log)

	log.Info("Attempting to connect to MongoDB now...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Error("Failed to connect to MongoDB", "error", err)
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Error("Failed to ping MongoDB", "error", err)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Info("Successfully Connected to MongoDB :)")

	return &MongoService{
		log:      serviceLog,
		client:   client,
		database: client.Database(mongoName),
	}, nil
}

// Transactions returns the collection the model-generated aggregation
// pipelines run against.
func (s *MongoService) Transactions() *mongo.Collection {
	return s.database.Collection("transactions")
}

func (s *MongoService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
