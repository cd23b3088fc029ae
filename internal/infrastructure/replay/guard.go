// Package replay remembers recently settled payment payloads so a captured
// header cannot buy a second request. Keys are content hashes of the raw
// payload; entries outlive the longest settlement window and then lapse.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/aibtcdev/x402-api/pkg/redis"
)

// DefaultTTL keeps reservations past the longest challenge timeout; after
// that the signed transfer has expired on-chain anyway.
const DefaultTTL = 15 * time.Minute

var timeNow = time.Now

// Guard reserves payment payloads. Reserve returns false when the key is
// already held; Release frees a reservation after a failed settlement so the
// client may retry the same payload.
type Guard interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

// Key derives the reservation key from the raw decoded payload bytes.
func Key(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "x402:payload:" + hex.EncodeToString(sum[:])
}

// RedisGuard reserves through the shared Redis client, surviving restarts
// and covering multi-instance deployments.
type RedisGuard struct {
	ttl time.Duration
}

// NewRedisGuard requires redis.Init to have connected the shared client.
func NewRedisGuard(ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{ttl: ttl}
}

func (g *RedisGuard) Reserve(ctx context.Context, key string) (bool, error) {
	return redis.SetNX(ctx, key, "1", g.ttl)
}

func (g *RedisGuard) Release(ctx context.Context, key string) {
	_ = redis.Del(ctx, key)
}

// MemoryGuard is the in-process fallback when no Redis is configured.
type MemoryGuard struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]time.Time // expiry instants
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{ttl: ttl, entries: make(map[string]time.Time)}
}

func (g *MemoryGuard) Reserve(ctx context.Context, key string) (bool, error) {
	now := timeNow()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, expiry := range g.entries {
		if !expiry.After(now) {
			delete(g.entries, k)
		}
	}
	if _, held := g.entries[key]; held {
		return false, nil
	}
	g.entries[key] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
}
