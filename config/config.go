// Package config loads store definitions and logging settings and registers
// the configured adapters.
//
// A configuration file (YAML, JSON or TOML) lists stores, each holding
// one or more collections:
//
//	log:
//	  level: info
//	  format: json
//	instrument: true
//	stores:
//	  - kind: dynamodb
//	    region: eu-west-1
//	    database: app
//	    collections:
//	      - name: Accounts
//	  - kind: mongodb
//	    uri: mongodb://localhost:27017
//	    database: app
//	    collections:
//	      - name: Orders
//	        partition_key: region
//
// Scalar settings can be overridden from the environment with the DOCBASE_
// prefix, e.g. DOCBASE_LOG_LEVEL=debug.
package config

import (
	"fmt"
	"strings"

	"github.com/jacentio/docbase/store"
)

// Store kinds.
const (
	KindDynamoDB = "dynamodb"
	KindMongoDB  = "mongodb"
	KindMemory   = "memory"
)

// Config is the top-level configuration.
type Config struct {
	Log LogConfig `mapstructure:"log"`

	// Instrument wraps every adapter with logging, metrics and tracing.
	Instrument bool `mapstructure:"instrument"`

	Stores []StoreConfig `mapstructure:"stores"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `mapstructure:"level"`

	// Format is json or text.
	Format string `mapstructure:"format"`
}

// StoreConfig describes one backing store and the collections it holds.
type StoreConfig struct {
	// Kind is dynamodb, mongodb or memory.
	Kind string `mapstructure:"kind"`

	// Endpoint overrides the DynamoDB endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Region is the AWS region for DynamoDB.
	Region string `mapstructure:"region"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`

	// URI is the MongoDB connection string.
	URI string `mapstructure:"uri"`

	// Database namespaces the collections: a DynamoDB table prefix or a
	// MongoDB database name.
	Database string `mapstructure:"database"`

	// ConsistentRead enables strongly consistent DynamoDB reads.
	ConsistentRead bool `mapstructure:"consistent_read"`

	// ScanSegments is the number of parallel DynamoDB scan segments.
	ScanSegments int `mapstructure:"scan_segments"`

	Collections []CollectionConfig `mapstructure:"collections"`
}

// CollectionConfig names one collection and its partition attribute.
type CollectionConfig struct {
	Name string `mapstructure:"name"`

	// PartitionKey is the partition attribute. For DynamoDB it is read from
	// the table and, when set here, must match it.
	PartitionKey string `mapstructure:"partition_key"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for missing or contradictory values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: invalid log level %q", store.ErrConfiguration, c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: invalid log format %q", store.ErrConfiguration, c.Log.Format)
	}

	seen := make(map[string]bool)
	for i, s := range c.Stores {
		switch s.Kind {
		case KindDynamoDB, KindMemory:
		case KindMongoDB:
			if s.URI == "" || s.Database == "" {
				return fmt.Errorf("%w: stores[%d]: mongodb requires uri and database", store.ErrConfiguration, i)
			}
		default:
			return fmt.Errorf("%w: stores[%d]: unknown kind %q", store.ErrConfiguration, i, s.Kind)
		}
		if len(s.Collections) == 0 {
			return fmt.Errorf("%w: stores[%d]: no collections", store.ErrConfiguration, i)
		}
		for _, coll := range s.Collections {
			name := strings.TrimSpace(coll.Name)
			if name == "" {
				return fmt.Errorf("%w: stores[%d]: collection name is required", store.ErrConfiguration, i)
			}
			if seen[name] {
				return fmt.Errorf("%w: collection %q is configured twice", store.ErrDuplicateRegistration, name)
			}
			seen[name] = true
		}
	}
	return nil
}
