// Package lock provides short-lived advisory locks keyed by slot.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("lock: key is held")

// Locker acquires a lock without waiting. The returned release is safe to
// call more than once.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// SlotKey names the lock for one calendar hour.
func SlotKey(calendarID, date string, hour int) string {
	return fmt.Sprintf("%s|%s|%02d", calendarID, date, hour)
}

// ---------------------------------------------------------------------------
// KeyedMutex
// ---------------------------------------------------------------------------

// KeyedMutex serializes holders of the same key within one process. ttl is
// ignored: the holder always releases.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[string]struct{})}
}

func (k *KeyedMutex) TryLock(_ context.Context, key string, _ time.Duration) (func(), error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[key]; ok {
		return nil, ErrLocked
	}
	k.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}, nil
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient is the subset of the go-redis client the locker needs.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// redisLocker locks with SET NX PX so that several instances share slot locks.
type redisLocker struct {
	rdb    RedisClient
	prefix string
}

func NewRedis(rdb RedisClient, prefix string) Locker {
	if prefix == "" {
		prefix = "agenda:lock"
	}
	return &redisLocker{rdb: rdb, prefix: prefix}
}

func (r *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	full := r.prefix + ":" + key
	ok, err := r.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must outlive a cancelled request context.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, r.rdb, []string{full}, token).Err()
		})
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
