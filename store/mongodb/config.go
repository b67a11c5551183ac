package mongodb

import (
	"fmt"
	"time"

	"github.com/jacentio/docbase/store"
)

// Config holds configuration for a MongoDB-backed collection.
type Config struct {
	// URI is the connection string. Required.
	URI string

	// Database is the database holding the collection. Required.
	Database string

	// Collection is the logical and physical collection name. Required.
	Collection string

	// ShardKey is the attribute the collection is sharded on. Empty means
	// the collection is unpartitioned.
	ShardKey string

	// ConnectTimeout bounds the initial connect and ping.
	// Default: 5s
	ConnectTimeout time.Duration

	// OperationTimeout bounds each operation whose context has no deadline.
	// Default: 5s
	OperationTimeout time.Duration
}

// DefaultConfig returns a Config with default timeouts.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		OperationTimeout: 5 * time.Second,
	}
}

func (c *Config) validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: mongodb URI is required", store.ErrConfiguration)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: mongodb database is required", store.ErrConfiguration)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: mongodb collection is required", store.ErrConfiguration)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 5 * time.Second
	}
	return nil
}
