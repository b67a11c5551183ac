package docbase

import (
	"context"

	"github.com/jacentio/docbase/store"
)

// The functions below operate on the Default catalog.

// Get reads a document of type E by id.
func Get[E any, P Entity[E]](ctx context.Context, id string) (*E, error) {
	return Of[E, P](defaultCatalog).Get(ctx, id)
}

// GetInPartition reads a document of type E by id and partition value.
func GetInPartition[E any, P Entity[E]](ctx context.Context, id, partitionKey string) (*E, error) {
	return Of[E, P](defaultCatalog).GetInPartition(ctx, id, partitionKey)
}

// Create inserts doc and writes the assigned id back onto it.
func Create[E any, P Entity[E]](ctx context.Context, doc P) error {
	return Of[E, P](defaultCatalog).Create(ctx, doc)
}

// Upsert creates or replaces doc under its current id.
func Upsert[E any, P Entity[E]](ctx context.Context, doc P) error {
	return Of[E, P](defaultCatalog).Upsert(ctx, doc)
}

// FindByID returns the document of type E with the given id, or nil.
func FindByID[E any, P Entity[E]](ctx context.Context, id string) (*E, error) {
	return Of[E, P](defaultCatalog).FindByID(ctx, id)
}

// Remove deletes the document of type E with the given id.
func Remove[E any, P Entity[E]](ctx context.Context, id string) error {
	return Of[E, P](defaultCatalog).Remove(ctx, id)
}

// RemoveInPartition deletes a document of type E by id and partition value.
func RemoveInPartition[E any, P Entity[E]](ctx context.Context, id, partitionKey string) error {
	return Of[E, P](defaultCatalog).RemoveInPartition(ctx, id, partitionKey)
}

// Where returns all documents of type E matching f.
func Where[E any, P Entity[E]](ctx context.Context, f store.Filter) ([]*E, error) {
	return Of[E, P](defaultCatalog).Where(ctx, f)
}

// First returns the first document of type E matching f, or store.ErrNotFound.
func First[E any, P Entity[E]](ctx context.Context, f store.Filter) (*E, error) {
	return Of[E, P](defaultCatalog).First(ctx, f)
}

// FirstOrDefault returns the first document of type E matching f, or nil.
func FirstOrDefault[E any, P Entity[E]](ctx context.Context, f store.Filter) (*E, error) {
	return Of[E, P](defaultCatalog).FirstOrDefault(ctx, f)
}

// GetAll returns every document of type E.
func GetAll[E any, P Entity[E]](ctx context.Context) ([]*E, error) {
	return Of[E, P](defaultCatalog).GetAll(ctx)
}

// Take returns up to n documents of type E.
func Take[E any, P Entity[E]](ctx context.Context, n int) ([]*E, error) {
	return Of[E, P](defaultCatalog).Take(ctx, n)
}

// Query runs a store-native statement against E's collection.
func Query[E any, P Entity[E]](ctx context.Context, statement string, params store.Params) ([]*E, error) {
	return Of[E, P](defaultCatalog).Query(ctx, statement, params)
}
