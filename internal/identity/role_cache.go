package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type RoleCache interface {
	Get(ctx context.Context, userID string) (Role, error)
	Set(ctx context.Context, userID string, role Role) error
	Delete(ctx context.Context, userID string) error
}

type cachedRole struct {
	Role     Role      `json:"role"`
	CachedAt time.Time `json:"cachedAt"`
}

// RedisRoleCache stores one role entry per user id. Entries older than ttl
// by the injected clock are treated as misses.
type RedisRoleCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisRoleCache(client *redis.Client, ttl time.Duration, now func() time.Time) *RedisRoleCache {
	if now == nil {
		now = time.Now
	}
	return &RedisRoleCache{client: client, ttl: ttl, now: now}
}

func (c *RedisRoleCache) Get(ctx context.Context, userID string) (Role, error) {
	data, err := c.client.Get(ctx, roleKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	var entry cachedRole
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", fmt.Errorf("unmarshal role failed: %w", err)
	}
	role, ok := ParseRole(string(entry.Role))
	if !ok {
		return "", ErrCacheMiss
	}
	if c.ttl > 0 && c.now().Sub(entry.CachedAt) > c.ttl {
		return "", ErrCacheMiss
	}
	return role, nil
}

func (c *RedisRoleCache) Set(ctx context.Context, userID string, role Role) error {
	data, err := json.Marshal(cachedRole{Role: role, CachedAt: c.now()})
	if err != nil {
		return fmt.Errorf("marshal role failed: %w", err)
	}
	if err := c.client.Set(ctx, roleKey(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisRoleCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, roleKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func roleKey(userID string) string {
	return fmt.Sprintf("role:%s", userID)
}
