package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voting-platform/internal/domain"
	"voting-platform/pkg/redis"
)

// PollCache caches poll listings and per-user voted markers in Redis.
// A nil *PollCache, or one without a client, is a valid no-op cache.
type PollCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPollCache creates a new cache service
func NewPollCache(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *PollCache {
	if ttl <= 0 {
		ttl = redis.TTLPolls
	}
	return &PollCache{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *PollCache) enabled() bool {
	return c != nil && c.redis != nil
}

func (c *PollCache) listingKey(filter domain.PollFilter) string {
	if filter.Status == "" {
		return c.redis.KeyBuilder.KeyPollsAll()
	}
	return c.redis.KeyBuilder.KeyPollsByStatus(string(filter.Status))
}

// GetPolls returns the cached listing or loads it through dbFallback (cache-aside)
func (c *PollCache) GetPolls(ctx context.Context, filter domain.PollFilter, dbFallback func(ctx context.Context, filter domain.PollFilter) (*domain.PollsResponse, error)) (*domain.PollsResponse, error) {
	if !c.enabled() {
		return dbFallback(ctx, filter)
	}

	key := c.listingKey(filter)

	cached, err := c.redis.Get(ctx, key)
	switch {
	case err == nil && cached != "":
		var resp domain.PollsResponse
		if jsonErr := json.Unmarshal([]byte(cached), &resp); jsonErr == nil {
			c.logger.Debug("Poll list cache hit", zap.String("status", string(filter.Status)))
			return &resp, nil
		} else {
			c.logger.Warn("Poll list cache corrupted, falling back to database", zap.Error(jsonErr))
		}
	case err != nil && !errors.Is(err, redis.ErrNil):
		c.logger.Warn("Poll list cache error, falling back to database", zap.Error(err))
	}

	// an invalidation landing while the database is read moves the generation on,
	// and the write-back below is then skipped
	genKey := c.redis.KeyBuilder.KeyPollsGeneration()
	gen, genErr := c.redis.Generation(ctx, genKey)

	resp, err := dbFallback(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("database fallback failed: %w", err)
	}

	if genErr != nil {
		c.logger.Warn("Poll list generation unreadable, not caching", zap.Error(genErr))
		return resp, nil
	}
	go c.cachePollsAsync(key, gen, resp)

	return resp, nil
}

func (c *PollCache) cachePollsAsync(key string, gen int64, resp *domain.PollsResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("Failed to marshal poll list for cache", zap.Error(err))
		return
	}
	written, err := c.redis.SetIfGeneration(ctx, c.redis.KeyBuilder.KeyPollsGeneration(), gen, key, data, c.ttl)
	if err != nil {
		c.logger.Warn("Failed to cache poll list", zap.Error(err))
		return
	}
	if !written {
		c.logger.Debug("Poll list changed while loading, not cached", zap.String("key", key))
	}
}

// InvalidatePolls drops every cached listing and fences off listings still being loaded
func (c *PollCache) InvalidatePolls(ctx context.Context) {
	if !c.enabled() {
		return
	}
	kb := c.redis.KeyBuilder
	if err := c.redis.BumpGeneration(ctx, kb.KeyPollsGeneration(), kb.KeyPollListings()...); err != nil {
		c.logger.Warn("Failed to invalidate poll list cache", zap.Error(err))
	}
}

// HasVoted reports a cached voted marker. A miss means "unknown", not "not voted".
func (c *PollCache) HasVoted(ctx context.Context, userID, pollID string) bool {
	if !c.enabled() {
		return false
	}
	voted, err := c.redis.SIsMember(ctx, c.redis.KeyBuilder.KeyUserVoted(userID), pollID)
	if err != nil {
		c.logger.Warn("Voted marker lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return voted
}

// MarkVoted records voted markers for the user
func (c *PollCache) MarkVoted(ctx context.Context, userID string, pollIDs ...string) {
	if !c.enabled() || len(pollIDs) == 0 {
		return
	}
	members := make([]interface{}, len(pollIDs))
	for i, id := range pollIDs {
		members[i] = id
	}
	if err := c.redis.SAdd(ctx, c.redis.KeyBuilder.KeyUserVoted(userID), redis.TTLUserVoted, members...); err != nil {
		c.logger.Warn("Failed to cache voted markers", zap.String("user_id", userID), zap.Error(err))
	}
}
