package idempotency

import (
	"context"
	"sync"
)

// MemoryGuard keeps processed ids in process memory. Used by the in-memory
// conversation store and tests.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]struct{})}
}

func (g *MemoryGuard) IsDuplicate(_ context.Context, requestID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[requestID]
	return ok, nil
}

func (g *MemoryGuard) MarkProcessed(_ context.Context, requestID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[requestID]; ok {
		return ErrDuplicate
	}
	g.seen[requestID] = struct{}{}
	return nil
}

// Forget removes a request id. The memory store calls it when a session that
// marked the id is rolled back.
func (g *MemoryGuard) Forget(requestID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, requestID)
}
