package metering

import (
	"context"
	"sync"
)

type counterKey struct {
	userID      string
	interfaceID string
}

// MemoryCounter keeps counts in process memory.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[counterKey]int64
}

// NewMemoryCounter creates an empty counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[counterKey]int64)}
}

// Increment implements Counter.
func (c *MemoryCounter) Increment(ctx context.Context, userID, interfaceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.counts[counterKey{userID: userID, interfaceID: interfaceID}]++
	c.mu.Unlock()
	return nil
}

// Count returns the number of recorded invocations.
func (c *MemoryCounter) Count(userID, interfaceID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[counterKey{userID: userID, interfaceID: interfaceID}]
}

// Total returns the number of recorded invocations across all keys.
func (c *MemoryCounter) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Close implements Counter.
func (c *MemoryCounter) Close() error {
	return nil
}
