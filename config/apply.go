package config

import (
	"context"
	"fmt"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/jacentio/docbase/store"
	"github.com/jacentio/docbase/store/dynamo"
	"github.com/jacentio/docbase/store/instrument"
	"github.com/jacentio/docbase/store/memory"
	"github.com/jacentio/docbase/store/mongodb"
)

// Options carries the shared dependencies of Apply.
type Options struct {
	Logger *zap.Logger

	// Metrics receives operation metrics when cfg.Instrument is set. Nil
	// disables metrics but keeps logging and tracing.
	Metrics *instrument.Metrics
}

// Apply builds an adapter for every configured collection and registers it
// in reg. Clients are shared per endpoint through reg.
func Apply(ctx context.Context, cfg *Config, reg *store.Registry, opts Options) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	for i, s := range cfg.Stores {
		for _, coll := range s.Collections {
			repo, err := open(ctx, reg, s, coll, opts.Logger)
			if err != nil {
				return fmt.Errorf("stores[%d] %s %q: %w", i, s.Kind, coll.Name, err)
			}
			if cfg.Instrument {
				repo = instrument.Wrap(repo, instrument.Options{Logger: opts.Logger, Metrics: opts.Metrics})
			}
			if err := reg.Register(coll.Name, repo); err != nil {
				return err
			}
		}
	}
	return nil
}

func open(ctx context.Context, reg *store.Registry, s StoreConfig, coll CollectionConfig, logger *zap.Logger) (store.Repository, error) {
	switch s.Kind {
	case KindMemory:
		return memory.New(memory.Config{Collection: coll.Name, PartitionKey: coll.PartitionKey}, logger)

	case KindDynamoDB:
		dc := dynamo.DefaultConfig()
		dc.Endpoint = s.Endpoint
		if s.Region != "" {
			dc.Region = s.Region
		}
		dc.AccessKeyID = s.AccessKeyID
		dc.SecretAccessKey = s.SecretAccessKey
		dc.SessionToken = s.SessionToken
		dc.Database = s.Database
		dc.Collection = coll.Name
		dc.ConsistentRead = s.ConsistentRead
		if s.ScanSegments > 0 {
			dc.ScanSegments = s.ScanSegments
		}

		client, err := store.Client(reg, dc.EndpointKey(), func() (dynamo.API, error) {
			return dynamo.Connect(ctx, dc)
		})
		if err != nil {
			return nil, err
		}
		adapter, err := dynamo.Open(ctx, client, dc, logger)
		if err != nil {
			return nil, err
		}
		if coll.PartitionKey != "" && coll.PartitionKey != adapter.PartitionPath() {
			return nil, fmt.Errorf("%w: configured partition key %q but table %s is partitioned on %q",
				store.ErrConfiguration, coll.PartitionKey, adapter.Table(), adapter.PartitionPath())
		}
		return adapter, nil

	case KindMongoDB:
		mc := mongodb.DefaultConfig()
		mc.URI = s.URI
		mc.Database = s.Database
		mc.Collection = coll.Name
		mc.ShardKey = coll.PartitionKey

		client, err := store.Client(reg, mc.URI, func() (*mongodriver.Client, error) {
			return mongodb.Connect(ctx, mc)
		})
		if err != nil {
			return nil, err
		}
		exec := mongodb.NewCollectionExecutor(client.Database(mc.Database).Collection(mc.Collection), mc.OperationTimeout)
		return mongodb.New(exec, mc, logger)
	}
	return nil, fmt.Errorf("%w: unknown store kind %q", store.ErrConfiguration, s.Kind)
}
