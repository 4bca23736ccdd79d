package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ReminderLockKey names the redis key guarding reminder runs.
const ReminderLockKey = "lock:reminders"

// reminderLockTTL bounds a reminder run whose holder died without releasing.
const reminderLockTTL = 10 * time.Minute

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance redis lock. The value is a random token
// so a run whose lease expired cannot release someone else's lock.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration, logger *zerolog.Logger) *RedisLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, logger: logger}
}

// NewReminderLocker guards the hourly reminder run across instances.
func NewReminderLocker(client *redis.Client, logger *zerolog.Logger) *RedisLocker {
	return NewRedisLocker(client, ReminderLockKey, reminderLockTTL, logger)
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire redis lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				l.logger.Warn().Err(err).Str("key", l.key).Msg("failed to release redis lock")
			}
		})
	}
	return release, true, nil
}

// LocalLocker serializes runs inside one process.
type LocalLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() *LocalLocker { return &LocalLocker{} }

func (l *LocalLocker) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, true, nil
}
