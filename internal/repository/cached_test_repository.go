package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/like-Ocean/AI-Classes/internal/model"
	"github.com/like-Ocean/AI-Classes/internal/service"
	"github.com/like-Ocean/AI-Classes/pkg/logger"
	"go.uber.org/zap"
)

const testCacheKeyPrefix = "attempt_engine:test:"

// CachedTestStore reads test definitions through redis. Definitions are
// immutable while published, so entries only expire by TTL. A nil client
// makes it a plain passthrough; redis failures fall back to the store.
type CachedTestStore struct {
	Store service.TestStore
	Redis *redis.Client
	TTL   time.Duration
}

func NewCachedTestStore(store service.TestStore, rdb *redis.Client, ttl time.Duration) *CachedTestStore {
	return &CachedTestStore{Store: store, Redis: rdb, TTL: ttl}
}

func testCacheKey(id uint) string {
	return fmt.Sprintf("%s%d", testCacheKeyPrefix, id)
}

// FindPublishedTest caches by test id and checks the rest of the reference
// against the cached copy.
func (c *CachedTestStore) FindPublishedTest(ctx context.Context, ref service.TestRef) (*model.Test, error) {
	if t := c.get(ctx, ref.TestID); t != nil {
		if t.IsPublished() && t.CourseID == ref.CourseID && t.ModuleID == ref.ModuleID && t.MaterialID == ref.MaterialID {
			return t, nil
		}
	}
	t, err := c.Store.FindPublishedTest(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.put(ctx, t)
	return t, nil
}

func (c *CachedTestStore) FindTestByID(ctx context.Context, id uint) (*model.Test, error) {
	if t := c.get(ctx, id); t != nil {
		return t, nil
	}
	t, err := c.Store.FindTestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.IsPublished() {
		c.put(ctx, t)
	}
	return t, nil
}

// Invalidate drops a cached definition, e.g. after unpublishing.
func (c *CachedTestStore) Invalidate(ctx context.Context, id uint) error {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Del(ctx, testCacheKey(id)).Err()
}

func (c *CachedTestStore) get(ctx context.Context, id uint) *model.Test {
	if c.Redis == nil {
		return nil
	}
	val, err := c.Redis.Get(ctx, testCacheKey(id)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		logger.Log.Warn("test cache read failed", zap.Uint("testId", id), zap.Error(err))
		return nil
	}
	var t model.Test
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		logger.Log.Warn("test cache entry corrupt", zap.Uint("testId", id), zap.Error(err))
		c.Redis.Del(ctx, testCacheKey(id))
		return nil
	}
	return &t
}

func (c *CachedTestStore) put(ctx context.Context, t *model.Test) {
	if c.Redis == nil || c.TTL <= 0 {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.Redis.Set(ctx, testCacheKey(t.ID), data, c.TTL).Err(); err != nil {
		logger.Log.Warn("test cache write failed", zap.Uint("testId", t.ID), zap.Error(err))
	}
}
