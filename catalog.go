package docbase

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/jacentio/docbase/store"
)

// binding is the resolved storage of one entity type.
type binding struct {
	storage Storage
	docType string
	repo    store.Repository
}

// Catalog binds entity types to their adapters.
//
// A type is bound on its first operation: its Storage declaration is read,
// its adapter is looked up in the Registry and the partition configuration
// is checked. Successful bindings are kept for the life of the Catalog and
// never rebound; failures are not cached.
type Catalog struct {
	registry *store.Registry
	logger   *zap.Logger

	mu       sync.RWMutex
	bindings map[reflect.Type]*binding
}

// NewCatalog creates a Catalog resolving adapters from registry.
// A nil logger disables logging.
func NewCatalog(registry *store.Registry, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		registry: registry,
		logger:   logger,
		bindings: make(map[reflect.Type]*binding),
	}
}

var defaultCatalog = NewCatalog(store.Default(), nil)

// Default returns the process-wide Catalog backed by store.Default().
func Default() *Catalog {
	return defaultCatalog
}

// Registry returns the registry adapters are resolved from.
func (c *Catalog) Registry() *store.Registry {
	return c.registry
}

// Bound reports whether entity type E has been bound.
func Bound[E any](c *Catalog) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[reflect.TypeFor[E]()]
	return ok
}

func bind[E any, P Entity[E]](c *Catalog) (*binding, error) {
	t := reflect.TypeFor[E]()

	c.mu.RLock()
	b, ok := c.bindings[t]
	c.mu.RUnlock()
	if ok {
		return b, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.bindings[t]; ok {
		return b, nil
	}

	storage, err := resolveStorage[E, P]()
	if err != nil {
		return nil, err
	}
	repo, err := c.registry.Adapter(storage.Collection)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", t.Name(), err)
	}
	if repo.IsPartitioned() {
		if storage.PartitionKey == "" {
			return nil, fmt.Errorf("%w: %s is stored in partitioned collection %q but declares no partition key",
				store.ErrConfiguration, t.Name(), storage.Collection)
		}
		if path := repo.PartitionPath(); path != "" && path != storage.PartitionKey {
			return nil, fmt.Errorf("%w: %s declares partition key %q but collection %q is partitioned on %q",
				store.ErrConfiguration, t.Name(), storage.PartitionKey, storage.Collection, path)
		}
	}

	b = &binding{
		storage: storage,
		docType: t.Name(),
		repo:    repo,
	}
	c.bindings[t] = b

	c.logger.Debug("bound entity type",
		zap.String("type", b.docType),
		zap.String("collection", storage.Collection),
		zap.String("partitionKey", storage.PartitionKey),
	)
	return b, nil
}
