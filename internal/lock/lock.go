// Package lock provides short-lived mutual exclusion keyed by string, backed
// by Redis when it is configured and by process memory otherwise.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// UnlockFunc releases a held lock. Releasing a lock that already expired is a no-op.
type UnlockFunc func(ctx context.Context) error

// renewOpTimeout bounds a single extend call.
const renewOpTimeout = 2 * time.Second

// keepAlive pushes the lock's expiry forward every ttl/3 until stop is
// called or extend reports the lock is no longer ours. A holder that dies
// stops renewing, so its lock still expires after at most ttl.
func keepAlive(ttl time.Duration, extend func(ctx context.Context) (bool, error)) (stop func()) {
	if ttl <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), renewOpTimeout)
				held, err := extend(ctx)
				cancel()
				if err != nil {
					log.Warn().Err(err).Msg("failed to renew lock")
					continue
				}
				if !held {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}

// releaseScript deletes the key only while it still holds our token, so an
// expired holder cannot release a lock someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript resets the TTL only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLocker implements a single-instance Redis lock with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a RedisLocker. Keys are namespaced with prefix.
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// TryLock attempts to take key for ttl without waiting.
// ok is false when another holder owns the key. The lock is renewed in the
// background until unlock is called.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := keepAlive(ttl, func(ctx context.Context) (bool, error) {
		n, err := extendScript.Run(ctx, l.client, []string{fullKey}, token, ttl.Milliseconds()).Int64()
		if err != nil {
			return false, fmt.Errorf("renew lock %s: %w", fullKey, err)
		}
		return n == 1, nil
	})

	unlock := func(ctx context.Context) error {
		stop()
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", fullKey, err)
		}
		return nil
	}
	return unlock, true, nil
}

type localEntry struct {
	token   string
	expires time.Time
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		entries: make(map[string]localEntry),
		now:     time.Now,
	}
}

// TryLock attempts to take key for ttl without waiting. The lock is renewed
// until unlock is called.
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (UnlockFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.entries[key]; held && now.Before(e.expires) {
		return nil, false, nil
	}

	token := uuid.NewString()
	l.entries[key] = localEntry{token: token, expires: now.Add(ttl)}

	stop := keepAlive(ttl, func(context.Context) (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		e, held := l.entries[key]
		if !held || e.token != token {
			return false, nil
		}
		e.expires = l.now().Add(ttl)
		l.entries[key] = e
		return true, nil
	})

	unlock := func(context.Context) error {
		stop()
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, held := l.entries[key]; held && e.token == token {
			delete(l.entries, key)
		}
		return nil
	}
	return unlock, true, nil
}
