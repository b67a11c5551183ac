package store

import "errors"

var (
	// ErrConfiguration is returned when a collection or entity type is misconfigured:
	// missing collection name, unknown collection, or a partitioned collection used
	// by a type without a partition key.
	ErrConfiguration = errors.New("docbase: invalid configuration")

	// ErrDuplicateRegistration is returned when a collection name is registered twice.
	ErrDuplicateRegistration = errors.New("docbase: collection already registered")

	// ErrNotFound is returned when a document doesn't exist, or when First finds no match.
	ErrNotFound = errors.New("docbase: document not found")

	// ErrAlreadyExists is returned when creating a document with an id already in use.
	ErrAlreadyExists = errors.New("docbase: document already exists")

	// ErrPartitionKeyRequired is returned when a partitioned collection is addressed without a partition key.
	ErrPartitionKeyRequired = errors.New("docbase: partition key required for partitioned collection")

	// ErrGuardFailed is returned when a guarded remove finds a document that doesn't match the guard.
	ErrGuardFailed = errors.New("docbase: document does not match guard")

	// ErrMissingID is returned when an operation needs a document id and none was given.
	ErrMissingID = errors.New("docbase: document id is required")

	// ErrUnsupported is returned when an adapter cannot perform an operation.
	ErrUnsupported = errors.New("docbase: operation not supported by adapter")
)
