package store

import "context"

// Well-known document attributes.
const (
	// IDAttr is the attribute holding a document's id.
	IDAttr = "id"

	// DocTypeAttr is the discriminator attribute holding a document's logical type name.
	DocTypeAttr = "_docType"
)

// Key addresses a single document.
type Key struct {
	// ID is the document id, unique within its collection.
	ID string

	// PartitionKey is the partition value. Required for partitioned collections.
	PartitionKey string
}

// ID returns a Key for an unpartitioned collection.
func ID(id string) Key {
	return Key{ID: id}
}

// PartitionedID returns a Key carrying a partition value.
func PartitionedID(id, partitionKey string) Key {
	return Key{ID: id, PartitionKey: partitionKey}
}

// Row is a schema-less document returned by raw queries.
type Row map[string]any

// Params maps named statement parameters (without the leading @) to values.
type Params map[string]any

// Repository is the operation surface every store adapter exposes.
//
// Methods that produce documents decode into out, which must be a pointer:
// a pointer to a struct for Get/First/FirstOrDefault and a pointer to a slice
// for Where/Take/Query.
type Repository interface {
	// Collection returns the logical collection name.
	Collection() string

	// IsPartitioned reports whether the collection has a partition key path.
	IsPartitioned() bool

	// PartitionPath returns the partition attribute name, or "" when unpartitioned.
	PartitionPath() string

	// Create inserts doc and returns its id. A doc without an id gets a new one.
	Create(ctx context.Context, doc any) (string, error)

	// Get reads one document by key. Returns ErrNotFound when absent.
	Get(ctx context.Context, key Key, out any) error

	// Where returns all documents matching f. An empty result is not an error.
	Where(ctx context.Context, f Filter, out any) error

	// Take returns up to n documents matching f.
	Take(ctx context.Context, f Filter, n int, out any) error

	// First returns the first document matching f, or ErrNotFound.
	First(ctx context.Context, f Filter, out any) error

	// FirstOrDefault returns the first document matching f. It reports false
	// with a nil error when nothing matches.
	FirstOrDefault(ctx context.Context, f Filter, out any) (bool, error)

	// Upsert creates or replaces the document at key and returns its id.
	Upsert(ctx context.Context, key Key, doc any) (string, error)

	// Remove deletes the document at key. Removing an absent document is not an error.
	// A non-nil guard restricts the delete to documents matching it; a stored
	// document that doesn't match yields ErrGuardFailed.
	Remove(ctx context.Context, key Key, guard Filter) error

	// Query runs a store-native statement with named parameters and decodes
	// all result pages into out.
	Query(ctx context.Context, statement string, params Params, out any) error

	// QueryRows runs a store-native statement and returns schema-less rows.
	QueryRows(ctx context.Context, statement string, params Params) ([]Row, error)
}
