// Package dedupe guards webhook side effects against provider replays.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard decides whether a natural key is being seen for the first time.
type Guard interface {
	// Claim records key and returns true if it was not already present.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a later retry can claim it again.
	Release(ctx context.Context, key string) error
}

// Key builds a fixed-length key from its parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// RedisGuard implements Guard with SET NX and a TTL.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisGuard creates a guard whose claims expire after ttl.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, prefix: "dedupe:", ttl: ttl}
}

// Claim implements Guard.
func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release implements Guard.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Nop accepts every key. Used when dedupe is disabled.
type Nop struct{}

// Claim implements Guard.
func (Nop) Claim(context.Context, string) (bool, error) { return true, nil }

// Release implements Guard.
func (Nop) Release(context.Context, string) error { return nil }
