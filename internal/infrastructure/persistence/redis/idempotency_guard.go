package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyGuard is a Redis-backed implementation of the engine's
// duplicate-delivery guard. SET NX makes marking atomic across instances,
// so the same event delivered to two replicas is applied exactly once
// within the retention window.
type IdempotencyGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewIdempotencyGuard creates a guard retaining event IDs for the given TTL.
func NewIdempotencyGuard(client *redis.Client, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &IdempotencyGuard{
		client: client,
		prefix: "achievements:event:",
		ttl:    ttl,
	}
}

// MarkIfNew records the event ID and reports whether it was new.
func (g *IdempotencyGuard) MarkIfNew(ctx context.Context, eventID string) (bool, error) {
	fresh, err := g.client.SetNX(ctx, g.prefix+eventID, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency guard: %w", err)
	}
	return fresh, nil
}

// Release removes the mark so a redelivered event is applied.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	if err := g.client.Del(ctx, g.prefix+eventID).Err(); err != nil {
		return fmt.Errorf("idempotency guard: %w", err)
	}
	return nil
}
