package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetAppointments(ctx context.Context, phone string) ([]*models.Appointment, bool, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]*models.Appointment), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetAppointments(ctx context.Context, phone string, appts []*models.Appointment) error {
	return m.Called(ctx, phone, appts).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	cache := NewFailoverCache(primary, fallback, &logger)
	ctx := context.Background()
	appts := sampleAppointments()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("GetAppointments", ctx, "p1").Return(appts, true, nil).Once()

		got, ok, err := cache.GetAppointments(ctx, "p1")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, appts, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("GetAppointments", ctx, "p2").Return(nil, false, errors.New("fail")).Once()
		fallback.On("GetAppointments", ctx, "p2").Return(appts, true, nil).Once()

		got, ok, err := cache.GetAppointments(ctx, "p2")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, appts, got)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "k", 3, time.Minute).Return(true, nil).Once()

		allowed, err := cache.CheckRateLimit(ctx, "k", 3, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertNotCalled(t, "CheckRateLimit", ctx, "k", 3, time.Minute)
	})

	t.Run("InvalidateWhileDownClearsFallback", func(t *testing.T) {
		fallback.On("Invalidate", ctx, "p3").Return(nil).Once()

		assert.NoError(t, cache.Invalidate(ctx, "p3"))
		fallback.AssertExpectations(t)
	})

	t.Run("Recovery", func(t *testing.T) {
		cache.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		primary.On("SetAppointments", ctx, "p4", appts).Return(nil).Once()

		assert.NoError(t, cache.SetAppointments(ctx, "p4", appts))
		assert.False(t, cache.isDown.Load())
		primary.AssertExpectations(t)
	})
}
