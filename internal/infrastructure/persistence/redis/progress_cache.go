package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
)

// CachedProgressRepository decorates a progress repository with a Redis
// read-through cache for per-user listings. Writes invalidate the user's
// cache entry; cache failures degrade to the underlying store and are only
// logged - the cache is never allowed to break progress tracking.
type CachedProgressRepository struct {
	inner  achievement.ProgressRepository
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewCachedProgressRepository wraps inner with a per-user listing cache.
func NewCachedProgressRepository(inner achievement.ProgressRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedProgressRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProgressRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		prefix: "achievements:progress:",
		logger: logger.With("component", "progress_cache"),
	}
}

// GetOrCreate delegates to the underlying store. Single-row reads are part
// of the write path and are never cached.
func (r *CachedProgressRepository) GetOrCreate(ctx context.Context, userID, achievementID string) (*achievement.UserProgress, error) {
	return r.inner.GetOrCreate(ctx, userID, achievementID)
}

// Save persists the row and invalidates the user's cached listing.
func (r *CachedProgressRepository) Save(ctx context.Context, progress *achievement.UserProgress) error {
	if err := r.inner.Save(ctx, progress); err != nil {
		return err
	}
	r.invalidate(ctx, progress.UserID)
	return nil
}

// BulkEnsure provisions rows and invalidates the user's cached listing.
func (r *CachedProgressRepository) BulkEnsure(ctx context.Context, userID string, achievementIDs []string) error {
	if err := r.inner.BulkEnsure(ctx, userID, achievementIDs); err != nil {
		return err
	}
	r.invalidate(ctx, userID)
	return nil
}

// ListByUser returns the cached listing if present, falling back to the
// underlying store and populating the cache on miss.
func (r *CachedProgressRepository) ListByUser(ctx context.Context, userID string) ([]*achievement.ProgressView, error) {
	key := r.prefix + userID

	payload, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var views []*achievement.ProgressView
		if err := json.Unmarshal(payload, &views); err == nil {
			return views, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		r.invalidate(ctx, userID)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("cache read failed", "user_id", userID, "error", err)
	}

	views, err := r.inner.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(views); err == nil {
		if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("cache write failed", "user_id", userID, "error", err)
		}
	}
	return views, nil
}

func (r *CachedProgressRepository) invalidate(ctx context.Context, userID string) {
	if err := r.client.Del(ctx, r.prefix+userID).Err(); err != nil {
		r.logger.Warn("cache invalidation failed", "user_id", userID, "error", err)
	}
}
