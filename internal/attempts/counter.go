// Package attempts tracks failed-contact cycles per (phone, medicine) key.
// Counts increase monotonically and are never removed; reaching the attempt
// cap is what flips a voicemail hangup into an escalation.
package attempts

import (
	"context"
	"sync"
)

// Counter is the ledger contract. Implementations must tolerate concurrent
// increments from unrelated calls.
type Counter interface {
	// Incr adds one attempt for key and returns the new count.
	Incr(ctx context.Context, key string) (int64, error)
	// Get returns the current count (0 for unseen keys).
	Get(ctx context.Context, key string) (int64, error)
}

// Key builds the ledger key for a phone/medicine pair.
func Key(phone, medicine string) string {
	return phone + "_" + medicine
}

// MemoryCounter is a process-local Counter. History is lost on restart,
// which is an accepted limitation of the in-memory ledger.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

func (c *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key], nil
}
