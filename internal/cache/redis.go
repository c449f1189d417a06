package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/bag-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const maxJitterMinutes = 5

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, sessionID string) (*domain.Bag, error) {
	data, err := r.client.Get(ctx, cacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	bag := domain.NewBag()
	if err := json.Unmarshal(data, bag); err != nil {
		return nil, fmt.Errorf("unmarshal bag failed: %w", err)
	}

	return bag, nil
}

func (r RedisCache) Set(ctx context.Context, sessionID string, bag *domain.Bag) error {
	data, err := json.Marshal(bag)
	if err != nil {
		return fmt.Errorf("marshal bag failed: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(sessionID), data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Fill uses SETNX so a bag read before a concurrent save never replaces the
// saved one.
func (r RedisCache) Fill(ctx context.Context, sessionID string, bag *domain.Bag) (bool, error) {
	data, err := json.Marshal(bag)
	if err != nil {
		return false, fmt.Errorf("marshal bag failed: %w", err)
	}

	stored, err := r.client.SetNX(ctx, cacheKey(sessionID), data, r.ttl()).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return stored, nil
}

// ttl adds jitter so sessions created together do not expire together.
func (r RedisCache) ttl() time.Duration {
	return r.baseTTL + time.Duration(rand.Intn(maxJitterMinutes))*time.Minute
}

func (r RedisCache) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", domain.SessionKey, sessionID)
}
