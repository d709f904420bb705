// Package cache provides a redis-backed cache for availability
// responses. Availability is read-heavy and cheap to recompute, so
// entries carry a short TTL and the whole branch is invalidated on any
// booking mutation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "avail:"

// Key builds the cache key for one availability query.
func Key(branchID, serviceID uuid.UUID, dateFrom, dateTo string, staffID *uuid.UUID) string {
	staff := "all"
	if staffID != nil {
		staff = staffID.String()
	}
	return fmt.Sprintf("%s%s:%s:%s:%s:%s", keyPrefix, branchID, serviceID, dateFrom, dateTo, staff)
}

// Availability caches JSON-encoded availability results in redis.
type Availability struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewAvailability creates a cache with the given TTL.
func NewAvailability(rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Availability {
	return &Availability{rdb: rdb, ttl: ttl, logger: logger}
}

// Get loads a cached result into v. A miss or a redis failure returns
// false; the caller recomputes either way.
func (c *Availability) Get(ctx context.Context, key string, v any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("availability cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("availability cache entry corrupt")
		return false
	}
	return true
}

// Set stores a result. Failures are logged and swallowed; the cache is
// best-effort.
func (c *Availability) Set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Msg("availability cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("availability cache write failed")
	}
}

// InvalidateBranch drops every cached availability entry for a branch.
// Called after any booking mutation at the branch.
func (c *Availability) InvalidateBranch(ctx context.Context, branchID uuid.UUID) {
	pattern := keyPrefix + branchID.String() + ":*"
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("availability cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("availability cache invalidation failed")
	}
}
