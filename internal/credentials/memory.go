package credentials

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore holds credentials in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]ClientCredential
}

// NewMemoryStore creates a store preloaded with creds.
func NewMemoryStore(creds ...ClientCredential) *MemoryStore {
	s := &MemoryStore{creds: make(map[string]ClientCredential, len(creds))}
	for _, c := range creds {
		s.creds[c.AccessKey] = c
	}
	return s
}

// Put adds or replaces a credential.
func (s *MemoryStore) Put(cred ClientCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.AccessKey] = cred
}

// Resolve implements Store.
func (s *MemoryStore) Resolve(ctx context.Context, accessKey string) (*ClientCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if accessKey == "" {
		return nil, fmt.Errorf("empty access key: %w", ErrNotFound)
	}

	s.mu.RLock()
	cred, ok := s.creds[accessKey]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("access key %q: %w", accessKey, ErrNotFound)
	}
	return &cred, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
