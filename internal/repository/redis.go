package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/config"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps short-lived per-phone appointment lists and rate counters in Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
		// Callers bound commands with context deadlines.
		ContextTimeoutEnabled: true,
	})
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func appointmentsKey(phone string) string { return "appointments:" + phone }

func (r *RedisCache) GetAppointments(ctx context.Context, phone string) ([]*models.Appointment, bool, error) {
	if r.client == nil {
		return nil, false, errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, appointmentsKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get appointments from redis: %w", err)
	}

	var appts []*models.Appointment
	if err := json.Unmarshal(val, &appts); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal appointments: %w", err)
	}
	return appts, true, nil
}

func (r *RedisCache) SetAppointments(ctx context.Context, phone string, appts []*models.Appointment) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(appts)
	if err != nil {
		return fmt.Errorf("failed to marshal appointments: %w", err)
	}
	if err := r.client.Set(ctx, appointmentsKey(phone), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set appointments in redis: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, phone string) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	if err := r.client.Del(ctx, appointmentsKey(phone)).Err(); err != nil {
		return fmt.Errorf("failed to delete appointments from redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts a hit on key and reports whether it is within limit
// for the current fixed window.
func (r *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errors.New("redis client is nil")
	}
	rk := "rate_limit:" + key
	count, err := r.client.Incr(ctx, rk).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, rk, window)
	}
	return count <= int64(limit), nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
