package dynamo

import (
	"fmt"

	"github.com/jacentio/docbase/store"
)

const maxScanSegments = 256

// Config holds configuration for a DynamoDB-backed collection.
type Config struct {
	// Endpoint overrides the service endpoint (e.g. "http://localhost:8000"
	// for DynamoDB Local). Empty uses the regional AWS endpoint.
	Endpoint string

	// Region is the AWS region.
	// Default: "us-east-1"
	Region string

	// AccessKeyID, SecretAccessKey and SessionToken are static credentials.
	// When empty, the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Database namespaces physical tables: the table for a collection is
	// "<Database>-<Collection>". Empty uses the collection name as is.
	Database string

	// Collection is the logical collection name. Required.
	Collection string

	// ConsistentRead requests strongly consistent reads for Get, scans and statements.
	ConsistentRead bool

	// ScanSegments is the number of parallel scan segments used by Where,
	// Take and First. Larger tables scan faster with more segments at the
	// cost of more concurrent requests. Results are ordered by segment.
	// Default: 1 (sequential scan)
	// Max: 256
	ScanSegments int
}

// DefaultConfig returns a Config for the default region.
func DefaultConfig() Config {
	return Config{
		Region:       "us-east-1",
		ScanSegments: 1,
	}
}

// TableName returns the physical table name of the collection.
func (c Config) TableName() string {
	if c.Database == "" {
		return c.Collection
	}
	return c.Database + "-" + c.Collection
}

// EndpointKey identifies the client connection this config shares with
// other collections.
func (c Config) EndpointKey() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return "dynamodb://" + c.Region
}

// validate fills defaults and checks required values.
func (c *Config) validate() error {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.ScanSegments < 1 {
		c.ScanSegments = 1
	}
	if c.ScanSegments > maxScanSegments {
		c.ScanSegments = maxScanSegments
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: dynamodb collection name is required", store.ErrConfiguration)
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("%w: dynamodb access key id and secret access key must be set together", store.ErrConfiguration)
	}
	return nil
}
