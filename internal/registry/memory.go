package registry

import (
	"context"
	"fmt"
	"sync"
)

type routeKey struct {
	path   string
	method string
}

// MemoryRegistry holds interface descriptors in memory. Lookups use
// prefix + path as the key.
type MemoryRegistry struct {
	prefix string

	mu    sync.RWMutex
	items map[routeKey]InterfaceDescriptor
}

// NewMemoryRegistry creates a registry whose keys are prefix + request path.
// Descriptors are stored under their Path as given.
func NewMemoryRegistry(prefix string, descriptors ...InterfaceDescriptor) *MemoryRegistry {
	r := &MemoryRegistry{
		prefix: prefix,
		items:  make(map[routeKey]InterfaceDescriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a descriptor.
func (r *MemoryRegistry) Register(d InterfaceDescriptor) {
	d.Method = normalizeMethod(d.Method)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[routeKey{path: d.Path, method: d.Method}] = d
}

// Resolve implements Registry.
func (r *MemoryRegistry) Resolve(ctx context.Context, path, method string) (*InterfaceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	key := routeKey{path: r.prefix + path, method: normalizeMethod(method)}

	r.mu.RLock()
	d, ok := r.items[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", key.method, key.path, ErrNotFound)
	}
	return &d, nil
}

// Close implements Registry.
func (r *MemoryRegistry) Close() error {
	return nil
}
