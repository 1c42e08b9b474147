// Package redis provides a read-through cache in front of the HMS booking mapping source.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/invoice-reconciliation/internal/domain/hms"
)

const (
	keyPrefix = "hms:mapping:"
	// stored for references the mapping source does not know
	notMapped = "-"
)

// Cache is the subset of redis.Cmdable used by CachedLookup
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var _ Cache = (*redis.Client)(nil)

// CachedLookup answers from Redis when it can and falls back to the wrapped lookup.
// Cache failures are logged and never fail a resolution.
type CachedLookup struct {
	cache  Cache
	next   hms.Lookup
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedLookup wraps next with a cache whose entries live for ttl
func NewCachedLookup(logger *slog.Logger, cache Cache, next hms.Lookup, ttl time.Duration) *CachedLookup {
	return &CachedLookup{
		cache:  cache,
		next:   next,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(vendorCode, vendorBookingID string) string {
	return keyPrefix + vendorCode + ":" + vendorBookingID
}

// Resolve implements hms.Lookup
func (c *CachedLookup) Resolve(ctx context.Context, vendorCode, vendorBookingID string) (string, bool, error) {
	key := cacheKey(vendorCode, vendorBookingID)

	cached, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == notMapped {
			return "", false, nil
		}
		return cached, true, nil
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("HMS mapping cache read failed", "key", key, "error", err)
	}

	omsBookingID, found, err := c.next.Resolve(ctx, vendorCode, vendorBookingID)
	if err != nil {
		return "", false, err
	}

	value := omsBookingID
	if !found {
		value = notMapped
	}
	if err := c.cache.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("HMS mapping cache write failed", "key", key, "error", err)
	}

	return omsBookingID, found, nil
}
