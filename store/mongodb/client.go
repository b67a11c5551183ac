package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/jacentio/docbase/store"
)

// Executor is the document-level surface of one MongoDB collection.
type Executor interface {
	InsertOne(ctx context.Context, doc bson.M) error
	FindOne(ctx context.Context, filter bson.M) (bson.M, bool, error)
	Find(ctx context.Context, filter bson.M, limit int64) ([]bson.M, error)
	ReplaceOne(ctx context.Context, filter, doc bson.M) error
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
}

// Connect opens and pings a MongoDB client.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

// Register connects to cfg's deployment, sharing one client per URI, and
// registers the collection in reg.
func Register(ctx context.Context, reg *store.Registry, cfg Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := store.Client(reg, cfg.URI, func() (*mongo.Client, error) {
		return Connect(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	exec := NewCollectionExecutor(client.Database(cfg.Database).Collection(cfg.Collection), cfg.OperationTimeout)
	adapter, err := New(exec, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(cfg.Collection, adapter); err != nil {
		return nil, err
	}
	return adapter, nil
}

// CollectionExecutor runs documents against a *mongo.Collection.
type CollectionExecutor struct {
	coll    *mongo.Collection
	timeout time.Duration
}

var _ Executor = (*CollectionExecutor)(nil)

// NewCollectionExecutor wraps coll. Operations without a deadline get timeout.
func NewCollectionExecutor(coll *mongo.Collection, timeout time.Duration) *CollectionExecutor {
	return &CollectionExecutor{coll: coll, timeout: timeout}
}

// InsertOne implements Executor.
func (e *CollectionExecutor) InsertOne(ctx context.Context, doc bson.M) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	_, err := e.coll.InsertOne(ctx, doc)
	return err
}

// FindOne implements Executor.
func (e *CollectionExecutor) FindOne(ctx context.Context, filter bson.M) (bson.M, bool, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	out := bson.M{}
	if err := e.coll.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return out, true, nil
}

// Find implements Executor. A limit of zero returns every match.
func (e *CollectionExecutor) Find(ctx context.Context, filter bson.M, limit int64) ([]bson.M, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := e.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceOne implements Executor. A missing document is inserted.
func (e *CollectionExecutor) ReplaceOne(ctx context.Context, filter, doc bson.M) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	_, err := e.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

// DeleteOne implements Executor.
func (e *CollectionExecutor) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	res, err := e.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (e *CollectionExecutor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}
