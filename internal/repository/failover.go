package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCache serves from primary until it errors, then from fallback,
// probing primary again once per recoveryInterval.
type FailoverCache struct {
	primary   domain.CacheStore
	fallback  domain.CacheStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverCache(primary, fallback domain.CacheStore, logger *zerolog.Logger) *FailoverCache {
	return &FailoverCache{primary: primary, fallback: fallback, logger: logger}
}

func (r *FailoverCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Warn().Err(err).Msg("primary cache failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverCache) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary cache recovered")
	}
}

func (r *FailoverCache) GetAppointments(ctx context.Context, phone string) ([]*models.Appointment, bool, error) {
	if r.usePrimary() {
		appts, ok, err := r.primary.GetAppointments(ctx, phone)
		if err == nil {
			r.recovered()
			return appts, ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetAppointments(ctx, phone)
}

func (r *FailoverCache) SetAppointments(ctx context.Context, phone string, appts []*models.Appointment) error {
	if r.usePrimary() {
		err := r.primary.SetAppointments(ctx, phone, appts)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetAppointments(ctx, phone, appts)
}

// Invalidate always clears the fallback too, so a later failover never
// serves a list written before the change.
func (r *FailoverCache) Invalidate(ctx context.Context, phone string) error {
	_ = r.fallback.Invalidate(ctx, phone)
	if r.usePrimary() {
		err := r.primary.Invalidate(ctx, phone)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
