package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryGate is an in-process Gate for single-instance deployments and
// tests. Claims expire lazily on the next TryClaim for the same key.
type MemoryGate struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

// NewMemoryGate creates an empty in-memory gate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

// TryClaim claims key until its TTL elapses. The check and the write
// happen under one lock, so concurrent claimants see exactly one winner.
func (g *MemoryGate) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiry, ok := g.claims[key]; ok && now.Before(expiry) {
		return false, nil
	}
	g.claims[key] = now.Add(ttl)
	return true, nil
}

// Close clears all claims.
func (g *MemoryGate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.claims = make(map[string]time.Time)
	return nil
}
