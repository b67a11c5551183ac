package store

import (
	"context"
	"errors"
)

// Typed binds a Repository to one document type T.
type Typed[T any] struct {
	repo Repository
}

// NewTyped wraps repo for documents of type T.
func NewTyped[T any](repo Repository) *Typed[T] {
	return &Typed[T]{repo: repo}
}

// Repository returns the underlying untyped adapter.
func (t *Typed[T]) Repository() Repository {
	return t.repo
}

// IsPartitioned reports whether the collection is partitioned.
func (t *Typed[T]) IsPartitioned() bool {
	return t.repo.IsPartitioned()
}

// Create inserts doc and returns its id.
func (t *Typed[T]) Create(ctx context.Context, doc *T) (string, error) {
	return t.repo.Create(ctx, doc)
}

// Get reads one document by key.
func (t *Typed[T]) Get(ctx context.Context, key Key) (*T, error) {
	var out T
	if err := t.repo.Get(ctx, key, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Where returns all documents matching f.
func (t *Typed[T]) Where(ctx context.Context, f Filter) ([]*T, error) {
	out := []*T{}
	if err := t.repo.Where(ctx, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Take returns up to n documents matching f.
func (t *Typed[T]) Take(ctx context.Context, f Filter, n int) ([]*T, error) {
	out := []*T{}
	if err := t.repo.Take(ctx, f, n, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// First returns the first document matching f, or ErrNotFound.
func (t *Typed[T]) First(ctx context.Context, f Filter) (*T, error) {
	var out T
	if err := t.repo.First(ctx, f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FirstOrDefault returns the first document matching f, or nil when nothing matches.
func (t *Typed[T]) FirstOrDefault(ctx context.Context, f Filter) (*T, error) {
	var out T
	found, err := t.repo.FirstOrDefault(ctx, f, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// Upsert creates or replaces the document at key and returns its id.
func (t *Typed[T]) Upsert(ctx context.Context, key Key, doc *T) (string, error) {
	return t.repo.Upsert(ctx, key, doc)
}

// Remove deletes the document at key.
func (t *Typed[T]) Remove(ctx context.Context, key Key) error {
	return t.repo.Remove(ctx, key, nil)
}

// Query runs a store-native statement and decodes every row as T.
func (t *Typed[T]) Query(ctx context.Context, statement string, params Params) ([]*T, error) {
	out := []*T{}
	if err := t.repo.Query(ctx, statement, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsNotFound reports whether err means the document doesn't exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
