package repository

import (
	"context"
	"testing"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAppointments() []*models.Appointment {
	return []*models.Appointment{{
		ID:              "a1",
		CustomerPhone:   "+972501234567",
		ServiceName:     "gel_polish",
		StartAt:         time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          models.StatusActive,
	}}
}

func TestRedisCache(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()
	phone := "+972501234567"

	t.Run("Miss", func(t *testing.T) {
		got, ok, err := cache.GetAppointments(ctx, phone)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("SetGetInvalidate", func(t *testing.T) {
		require.NoError(t, cache.SetAppointments(ctx, phone, sampleAppointments()))
		got, ok, err := cache.GetAppointments(ctx, phone)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, "a1", got[0].ID)
		assert.True(t, got[0].StartAt.Equal(sampleAppointments()[0].StartAt))

		require.NoError(t, cache.Invalidate(ctx, phone))
		_, ok, err = cache.GetAppointments(ctx, phone)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("EmptyListIsAHit", func(t *testing.T) {
		require.NoError(t, cache.SetAppointments(ctx, phone, []*models.Appointment{}))
		got, ok, err := cache.GetAppointments(ctx, phone)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, got)
	})

	t.Run("TTL", func(t *testing.T) {
		require.NoError(t, cache.SetAppointments(ctx, phone, sampleAppointments()))
		s.FastForward(2 * time.Minute)
		_, ok, err := cache.GetAppointments(ctx, phone)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := cache.CheckRateLimit(ctx, "otp:"+phone, 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := cache.CheckRateLimit(ctx, "otp:"+phone, 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Minute)
		allowed, err = cache.CheckRateLimit(ctx, "otp:"+phone, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		_, _, err := cache.GetAppointments(ctx, phone)
		assert.Error(t, err)
	})
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()
	phone := "+972501234567"

	require.NoError(t, cache.SetAppointments(ctx, phone, sampleAppointments()))
	got, ok, err := cache.GetAppointments(ctx, phone)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, got, 1)

	now = now.Add(time.Minute)
	_, ok, _ = cache.GetAppointments(ctx, phone)
	assert.False(t, ok, "entry expires at ttl")

	require.NoError(t, cache.SetAppointments(ctx, phone, sampleAppointments()))
	require.NoError(t, cache.Invalidate(ctx, phone))
	_, ok, _ = cache.GetAppointments(ctx, phone)
	assert.False(t, ok)

	allowed, _ := cache.CheckRateLimit(ctx, "k", 1, time.Minute)
	assert.True(t, allowed)
	allowed, _ = cache.CheckRateLimit(ctx, "k", 1, time.Minute)
	assert.False(t, allowed)
	now = now.Add(2 * time.Minute)
	allowed, _ = cache.CheckRateLimit(ctx, "k", 1, time.Minute)
	assert.True(t, allowed)
}

func TestMemoryCache_SweepsExpiredEntries(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"otp:+972501111111", "otp:+972502222222", "ip:10.0.0.1"} {
		_, err := cache.CheckRateLimit(ctx, key, 5, time.Minute)
		require.NoError(t, err)
	}
	require.NoError(t, cache.SetAppointments(ctx, "+972501111111", sampleAppointments()))
	assert.Len(t, cache.rateLimits, 3)

	now = now.Add(5 * time.Minute)
	allowed, err := cache.CheckRateLimit(ctx, "ip:10.0.0.2", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.Len(t, cache.rateLimits, 1)
	assert.Contains(t, cache.rateLimits, "ip:10.0.0.2")
	assert.Empty(t, cache.entries)
}
