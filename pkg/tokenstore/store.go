package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked_jti:"

// Store records revoked token ids until the token would have expired anyway.
type Store interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Consume revokes jti and reports whether this call did so. Concurrent
	// callers with the same jti see true at most once.
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

type redisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *redisStore) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+jti, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}
	return ok, nil
}

func (s *redisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, keyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return true, nil
}

// memoryStore is used when no Redis is configured. Revocations do not
// survive restarts and are not shared between instances.
type memoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) Store {
	return &memoryStore{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *memoryStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(keyPrefix+jti, struct{}{}, ttl)
	return nil
}

func (s *memoryStore) Consume(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	return s.cache.Add(keyPrefix+jti, struct{}{}, ttl) == nil, nil
}

func (s *memoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, found := s.cache.Get(keyPrefix + jti)
	return found, nil
}
