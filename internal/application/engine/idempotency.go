package engine

import (
	"context"
	"sync"
	"time"
)

// IdempotencyGuard deduplicates event deliveries. Upstream dispatch is
// at-least-once; the engine drops an event whose ID it has already seen
// within the retention window.
type IdempotencyGuard interface {
	// MarkIfNew records the event ID and reports whether it was new.
	// Returning false means the event was already processed and must be
	// dropped.
	MarkIfNew(ctx context.Context, eventID string) (bool, error)

	// Release forgets a previously marked event ID. Called when applying
	// the event failed after marking, so that the caller's redelivery is
	// not dropped as a duplicate.
	Release(ctx context.Context, eventID string) error
}

// noopGuard accepts everything. Used when deduplication is delegated to
// the caller.
type noopGuard struct{}

func (noopGuard) MarkIfNew(ctx context.Context, eventID string) (bool, error) {
	return true, nil
}

func (noopGuard) Release(ctx context.Context, eventID string) error {
	return nil
}

// NoopGuard returns a guard that treats every delivery as new.
func NoopGuard() IdempotencyGuard {
	return noopGuard{}
}

// MemoryGuard is an in-process IdempotencyGuard with TTL-based eviction.
// Suitable for single-instance deployments and tests; distributed
// deployments use the Redis-backed guard instead.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration

	// sweepEvery marks; avoids a janitor goroutine.
	sweepCounter int
}

// sweepInterval is how many marks pass between expiry sweeps.
const sweepInterval = 1024

// NewMemoryGuard creates a MemoryGuard retaining IDs for the given TTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// MarkIfNew implements IdempotencyGuard.
func (g *MemoryGuard) MarkIfNew(ctx context.Context, eventID string) (bool, error) {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if expiry, ok := g.seen[eventID]; ok && now.Before(expiry) {
		return false, nil
	}
	g.seen[eventID] = now.Add(g.ttl)

	g.sweepCounter++
	if g.sweepCounter >= sweepInterval {
		g.sweepCounter = 0
		for id, expiry := range g.seen {
			if now.After(expiry) {
				delete(g.seen, id)
			}
		}
	}

	return true, nil
}

// Release implements IdempotencyGuard.
func (g *MemoryGuard) Release(ctx context.Context, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, eventID)
	return nil
}
