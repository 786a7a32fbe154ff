package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/pressgoat/internal/types"
)

// MongoSink upserts articles into a MongoDB collection keyed by source URL
// and body text, so re-exporting the corpus does not duplicate documents.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoSink connects to MongoDB.
func NewMongoSink(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Store(ctx context.Context, t types.Table) error {
	if len(t) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	models := make([]mongo.WriteModel, len(t))
	for i := range t {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{
				"source_url":       t[i].SourceURL,
				"source_full_text": t[i].SourceFullText,
			}).
			SetReplacement(t[i]).
			SetUpsert(true)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	res, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb bulk write: %w", err)}
	}

	s.count += len(t)
	s.logger.Debug("articles stored in mongodb",
		"count", len(t),
		"upserted", res.UpsertedCount,
		"total", s.count,
	)
	return nil
}

func (s *MongoSink) Close() error {
	s.logger.Info("mongodb sink closing", "total_articles", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Multi-Sink Fan-Out ---

// MultiSink writes the corpus to several backends.
type MultiSink struct {
	backends []Sink
	logger   *slog.Logger
}

// NewMultiSink creates a sink that fans out to multiple backends.
func NewMultiSink(backends []Sink, logger *slog.Logger) *MultiSink {
	return &MultiSink{
		backends: backends,
		logger:   logger.With("component", "multi_sink"),
	}
}

func (s *MultiSink) Name() string { return "multi" }

func (s *MultiSink) Store(ctx context.Context, t types.Table) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Store(ctx, t); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiSink) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
