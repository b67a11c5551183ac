package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Registry maps logical collection names to adapters and connection
// endpoints to shared client handles.
//
// Entries are added and never replaced or removed. Both maps are guarded by
// one mutex. Client connects run outside it, one flight per endpoint.
type Registry struct {
	mu         sync.Mutex
	adapters   map[string]Repository
	clients    map[string]any
	connecting singleflight.Group
	logger     *zap.Logger
}

// NewRegistry creates a new empty Registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		adapters: make(map[string]Repository),
		clients:  make(map[string]any),
		logger:   logger,
	}
}

var defaultRegistry = NewRegistry(nil)

// Default returns the process-wide Registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds an adapter under a collection name.
func (r *Registry) Register(collection string, repo Repository) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("%w: collection name is required", ErrConfiguration)
	}
	if repo == nil {
		return fmt.Errorf("%w: adapter for %q is nil", ErrConfiguration, collection)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[collection]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRegistration, collection)
	}
	r.adapters[collection] = repo

	r.logger.Info("registered collection",
		zap.String("collection", collection),
		zap.Bool("partitioned", repo.IsPartitioned()),
	)
	return nil
}

// Adapter returns the adapter registered for a collection.
func (r *Registry) Adapter(collection string) (Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	repo, ok := r.adapters[collection]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for collection %q", ErrConfiguration, collection)
	}
	return repo, nil
}

// Collections returns the registered collection names in sorted order.
func (r *Registry) Collections() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	r.mu.Unlock()

	slices.Sort(names)
	return names
}

// Client returns the client handle cached for endpoint, calling connect to
// build and cache one on first use. Failed connects are not cached.
//
// Concurrent first callers for an endpoint share a single connect, so at most
// one handle is ever built per endpoint. Other registry calls do not wait on it.
func Client[C any](r *Registry, endpoint string, connect func() (C, error)) (C, error) {
	var zero C

	existing, ok := r.client(endpoint)
	if !ok {
		v, err, _ := r.connecting.Do(endpoint, func() (any, error) {
			if existing, ok := r.client(endpoint); ok {
				return existing, nil
			}
			client, err := connect()
			if err != nil {
				return nil, fmt.Errorf("connect %s: %w", endpoint, err)
			}

			r.mu.Lock()
			r.clients[endpoint] = client
			r.mu.Unlock()

			r.logger.Info("created client", zap.String("endpoint", endpoint))
			return client, nil
		})
		if err != nil {
			return zero, err
		}
		existing = v
	}

	client, ok := existing.(C)
	if !ok {
		return zero, fmt.Errorf("%w: endpoint %q already holds a %T client", ErrConfiguration, endpoint, existing)
	}
	return client, nil
}

func (r *Registry) client(endpoint string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[endpoint]
	return c, ok
}
