// Package store defines the repository port shared by every docbase adapter.
//
// An adapter serves one logical collection of JSON-shaped documents. Adapters
// live in subpackages: [github.com/jacentio/docbase/store/dynamo] for Amazon
// DynamoDB, [github.com/jacentio/docbase/store/mongodb] for MongoDB and
// [github.com/jacentio/docbase/store/memory] for an in-process store.
//
// # Repository
//
// [Repository] is the untyped surface. Reads decode into a caller-supplied
// destination:
//
//	var contacts []Contact
//	err := repo.Where(ctx, store.Eq("lastName", "Doe"), &contacts)
//
// [Typed] binds a Repository to one document type:
//
//	contacts := store.NewTyped[Contact](repo)
//	john, err := contacts.Get(ctx, store.ID("42"))
//
// # Filters
//
// Predicates are built from a small [Filter] tree over dotted attribute paths:
//
//	f := store.And(
//	    store.Eq("lastName", "Doe"),
//	    store.BeginsWith("addresses.0.postalCode", "12"),
//	)
//
// Each adapter translates the tree into its native filter language. A nil
// Filter matches every document.
//
// # Registry
//
// A [Registry] maps collection names to adapters and endpoints to shared
// client handles, so every collection on one endpoint reuses one client:
//
//	reg := store.NewRegistry(logger)
//	client, err := store.Client(reg, endpoint, connect)
//
// # Errors
//
// The package defines sentinel errors checked with [errors.Is]:
//
//   - [ErrConfiguration] - missing or inconsistent collection setup
//   - [ErrDuplicateRegistration] - collection registered twice
//   - [ErrNotFound] - document doesn't exist
//   - [ErrAlreadyExists] - create with an id already in use
//   - [ErrPartitionKeyRequired] - partitioned collection addressed without a partition value
//   - [ErrGuardFailed] - guarded remove found a non-matching document
//   - [ErrUnsupported] - operation not available on the adapter
package store
