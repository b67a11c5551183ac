package docbase

import (
	"context"
	"fmt"

	"github.com/jacentio/docbase/store"
)

// Collection exposes the operations of entity type E.
//
// Predicate reads (Where, First, FirstOrDefault, FindByID, GetAll, Take) are
// always scoped to E's discriminator, so several entity types can share one
// physical collection. Removes are guarded by the same clause.
type Collection[E any, P Entity[E]] struct {
	catalog *Catalog
}

// Of returns the Collection of entity type E in catalog c.
func Of[E any, P Entity[E]](c *Catalog) *Collection[E, P] {
	return &Collection[E, P]{catalog: c}
}

func (c *Collection[E, P]) bound() (*binding, *store.Typed[E], error) {
	b, err := bind[E, P](c.catalog)
	if err != nil {
		return nil, nil, err
	}
	return b, store.NewTyped[E](b.repo), nil
}

// scoped conjoins f with E's discriminator clause.
func scoped(b *binding, f store.Filter) store.Filter {
	return store.And(f, store.Eq(store.DocTypeAttr, b.docType))
}

// Storage returns E's resolved storage declaration.
func (c *Collection[E, P]) Storage() (Storage, error) {
	b, err := bind[E, P](c.catalog)
	if err != nil {
		return Storage{}, err
	}
	return b.storage, nil
}

// Get reads a document by id. Documents of another type are reported as not found.
func (c *Collection[E, P]) Get(ctx context.Context, id string) (*E, error) {
	return c.get(ctx, store.ID(id))
}

// GetInPartition reads a document by id and partition value.
func (c *Collection[E, P]) GetInPartition(ctx context.Context, id, partitionKey string) (*E, error) {
	return c.get(ctx, store.PartitionedID(id, partitionKey))
}

func (c *Collection[E, P]) get(ctx context.Context, key store.Key) (*E, error) {
	b, typed, err := c.bound()
	if err != nil {
		return nil, err
	}
	doc, err := typed.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if got := P(doc).DocumentType(); got != b.docType {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", store.ErrNotFound, key.ID, got, b.docType)
	}
	return doc, nil
}

// Create inserts doc and writes the assigned id back onto it.
func (c *Collection[E, P]) Create(ctx context.Context, doc P) error {
	b, typed, err := c.bound()
	if err != nil {
		return err
	}
	doc.stampDocType(b.docType)
	id, err := typed.Create(ctx, doc)
	if err != nil {
		return err
	}
	doc.SetDocumentID(id)
	return nil
}

// Upsert creates or replaces doc under its current id. A doc without an id
// gets one assigned and written back.
func (c *Collection[E, P]) Upsert(ctx context.Context, doc P) error {
	return c.upsert(ctx, store.ID(doc.DocumentID()), doc)
}

// UpsertInPartition is Upsert with an explicit partition value.
func (c *Collection[E, P]) UpsertInPartition(ctx context.Context, doc P, partitionKey string) error {
	return c.upsert(ctx, store.PartitionedID(doc.DocumentID(), partitionKey), doc)
}

func (c *Collection[E, P]) upsert(ctx context.Context, key store.Key, doc P) error {
	b, typed, err := c.bound()
	if err != nil {
		return err
	}
	doc.stampDocType(b.docType)
	id, err := typed.Upsert(ctx, key, doc)
	if err != nil {
		return err
	}
	doc.SetDocumentID(id)
	return nil
}

// FindByID returns the document with the given id, or nil when there is none.
func (c *Collection[E, P]) FindByID(ctx context.Context, id string) (*E, error) {
	return c.FirstOrDefault(ctx, store.Eq(store.IDAttr, id))
}

// Remove deletes the document with the given id. Removing an absent id is
// not an error; an id belonging to another type yields store.ErrGuardFailed.
func (c *Collection[E, P]) Remove(ctx context.Context, id string) error {
	return c.remove(ctx, store.ID(id))
}

// RemoveInPartition deletes a document by id and partition value.
func (c *Collection[E, P]) RemoveInPartition(ctx context.Context, id, partitionKey string) error {
	return c.remove(ctx, store.PartitionedID(id, partitionKey))
}

func (c *Collection[E, P]) remove(ctx context.Context, key store.Key) error {
	b, _, err := c.bound()
	if err != nil {
		return err
	}
	return b.repo.Remove(ctx, key, store.Eq(store.DocTypeAttr, b.docType))
}

// Where returns all documents of type E matching f.
func (c *Collection[E, P]) Where(ctx context.Context, f store.Filter) ([]*E, error) {
	b, typed, err := c.bound()
	if err != nil {
		return nil, err
	}
	return typed.Where(ctx, scoped(b, f))
}

// First returns the first document of type E matching f, or store.ErrNotFound.
func (c *Collection[E, P]) First(ctx context.Context, f store.Filter) (*E, error) {
	b, typed, err := c.bound()
	if err != nil {
		return nil, err
	}
	return typed.First(ctx, scoped(b, f))
}

// FirstOrDefault returns the first document of type E matching f, or nil.
func (c *Collection[E, P]) FirstOrDefault(ctx context.Context, f store.Filter) (*E, error) {
	b, typed, err := c.bound()
	if err != nil {
		return nil, err
	}
	return typed.FirstOrDefault(ctx, scoped(b, f))
}

// GetAll returns every document of type E.
func (c *Collection[E, P]) GetAll(ctx context.Context) ([]*E, error) {
	return c.Where(ctx, nil)
}

// Take returns up to n documents of type E.
func (c *Collection[E, P]) Take(ctx context.Context, n int) ([]*E, error) {
	b, typed, err := c.bound()
	if err != nil {
		return nil, err
	}
	return typed.Take(ctx, scoped(b, nil), n)
}

// Query runs a store-native statement and decodes each row as E. The
// statement is passed through verbatim and is not scoped to E.
func (c *Collection[E, P]) Query(ctx context.Context, statement string, params store.Params) ([]*E, error) {
	_, typed, err := c.bound()
	if err != nil {
		return nil, err
	}
	return typed.Query(ctx, statement, params)
}
