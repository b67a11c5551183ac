// Package memory provides an in-process document store adapter.
//
// Documents are held in their JSON form, so anything that round-trips through
// encoding/json with `json` tags can be stored. Filters are evaluated with
// [store.Filter.Match]. Raw statements are not supported.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/docbase/store"
)

// Config holds configuration for an in-memory collection.
type Config struct {
	// Collection is the logical collection name.
	Collection string

	// PartitionKey is the partition attribute. Empty means unpartitioned.
	PartitionKey string
}

type docKey struct {
	partition string
	id        string
}

// Adapter is an in-memory store.Repository.
type Adapter struct {
	collection string
	partition  string
	logger     *zap.Logger

	mu    sync.RWMutex
	docs  map[docKey]map[string]any
	order []docKey
}

var _ store.Repository = (*Adapter)(nil)

// New creates an empty in-memory collection.
func New(cfg Config, logger *zap.Logger) (*Adapter, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", store.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		collection: cfg.Collection,
		partition:  cfg.PartitionKey,
		logger:     logger.With(zap.String("collection", cfg.Collection)),
		docs:       make(map[docKey]map[string]any),
	}, nil
}

// Collection implements store.Repository.
func (a *Adapter) Collection() string { return a.collection }

// IsPartitioned implements store.Repository.
func (a *Adapter) IsPartitioned() bool { return a.partition != "" }

// PartitionPath implements store.Repository.
func (a *Adapter) PartitionPath() string { return a.partition }

// Len returns the number of stored documents.
func (a *Adapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.docs)
}

// Create implements store.Repository.
func (a *Adapter) Create(ctx context.Context, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, err := toMap(doc)
	if err != nil {
		return "", err
	}
	id, _ := m[store.IDAttr].(string)
	if id == "" {
		id = uuid.NewString()
		m[store.IDAttr] = id
	}
	k, err := a.keyOf(m, store.ID(id))
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.docs[k]; exists {
		return "", fmt.Errorf("%w: %s", store.ErrAlreadyExists, id)
	}
	a.docs[k] = m
	a.order = append(a.order, k)

	a.logger.Debug("created document", zap.String("id", id))
	return id, nil
}

// Get implements store.Repository.
func (a *Adapter) Get(ctx context.Context, key store.Key, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.CheckKey(key, a.IsPartitioned()); err != nil {
		return err
	}

	a.mu.RLock()
	m, ok := a.docs[a.lookupKey(key)]
	a.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}
	return decode(m, out)
}

// Where implements store.Repository.
func (a *Adapter) Where(ctx context.Context, f store.Filter, out any) error {
	return a.find(ctx, f, -1, out)
}

// Take implements store.Repository.
func (a *Adapter) Take(ctx context.Context, f store.Filter, n int, out any) error {
	if n <= 0 {
		return store.ResetSlice(out)
	}
	return a.find(ctx, f, n, out)
}

// find decodes up to limit matches into out. A negative limit means no limit.
func (a *Adapter) find(ctx context.Context, f store.Filter, limit int, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ResetSlice(out); err != nil {
		return err
	}
	matches := a.scan(f, limit)
	if len(matches) == 0 {
		return nil
	}
	return decode(matches, out)
}

// First implements store.Repository.
func (a *Adapter) First(ctx context.Context, f store.Filter, out any) error {
	found, err := a.FirstOrDefault(ctx, f, out)
	if err != nil {
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

// FirstOrDefault implements store.Repository.
func (a *Adapter) FirstOrDefault(ctx context.Context, f store.Filter, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := store.CheckPointer(out); err != nil {
		return false, err
	}
	matches := a.scan(f, 1)
	if len(matches) == 0 {
		return false, nil
	}
	return true, decode(matches[0], out)
}

// Upsert implements store.Repository.
func (a *Adapter) Upsert(ctx context.Context, key store.Key, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, err := toMap(doc)
	if err != nil {
		return "", err
	}
	id := key.ID
	if id == "" {
		id, _ = m[store.IDAttr].(string)
	}
	if id == "" {
		id = uuid.NewString()
	}
	m[store.IDAttr] = id
	key.ID = id

	k, err := a.keyOf(m, key)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.docs[k]; !exists {
		a.order = append(a.order, k)
	}
	a.docs[k] = m
	return id, nil
}

// Remove implements store.Repository.
func (a *Adapter) Remove(ctx context.Context, key store.Key, guard store.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.CheckKey(key, a.IsPartitioned()); err != nil {
		return err
	}
	k := a.lookupKey(key)

	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.docs[k]
	if !ok {
		return nil
	}
	if !store.Matches(guard, m) {
		return fmt.Errorf("%w: %s", store.ErrGuardFailed, key.ID)
	}
	delete(a.docs, k)
	for i, existing := range a.order {
		if existing == k {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return nil
}

// Query implements store.Repository. Raw statements are not supported.
func (a *Adapter) Query(ctx context.Context, statement string, params store.Params, out any) error {
	return fmt.Errorf("%w: memory adapter has no query language", store.ErrUnsupported)
}

// QueryRows implements store.Repository. Raw statements are not supported.
func (a *Adapter) QueryRows(ctx context.Context, statement string, params store.Params) ([]store.Row, error) {
	return nil, fmt.Errorf("%w: memory adapter has no query language", store.ErrUnsupported)
}

// scan returns matching documents in insertion order, up to limit (negative = all).
func (a *Adapter) scan(f store.Filter, limit int) []map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var matches []map[string]any
	for _, k := range a.order {
		m := a.docs[k]
		if !store.Matches(f, m) {
			continue
		}
		matches = append(matches, m)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches
}

// keyOf derives the storage key of a document. The partition attribute in m
// wins; key.PartitionKey fills it when empty.
func (a *Adapter) keyOf(m map[string]any, key store.Key) (docKey, error) {
	if !a.IsPartitioned() {
		return docKey{id: key.ID}, nil
	}
	pk, _ := m[a.partition].(string)
	if pk == "" {
		pk = key.PartitionKey
	}
	if pk == "" {
		return docKey{}, store.ErrPartitionKeyRequired
	}
	m[a.partition] = pk
	return docKey{partition: pk, id: key.ID}, nil
}

func (a *Adapter) lookupKey(key store.Key) docKey {
	if !a.IsPartitioned() {
		return docKey{id: key.ID}
	}
	return docKey{partition: key.PartitionKey, id: key.ID}
}

func toMap(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("encode document: %T is not an object", doc)
	}
	return m, nil
}

func decode(src any, out any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
