package repository

import (
	"context"
	"sync"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"
)

type cachedAppointments struct {
	appts     []*models.Appointment
	expiresAt time.Time
}

// memorySweepEvery spaces out the scans that drop expired entries.
const memorySweepEvery = time.Minute

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryCache is the in-process CacheStore, used alone or as the failover target.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]cachedAppointments
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
	lastSweep  time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]cachedAppointments),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryCache) GetAppointments(_ context.Context, phone string) ([]*models.Appointment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[phone]
	if !ok {
		return nil, false, nil
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.entries, phone)
		return nil, false, nil
	}
	return e.appts, true, nil
}

func (r *MemoryCache) SetAppointments(_ context.Context, phone string, appts []*models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	r.entries[phone] = cachedAppointments{appts: appts, expiresAt: now.Add(r.ttl)}
	return nil
}

func (r *MemoryCache) Invalidate(_ context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, phone)
	return nil
}

func (r *MemoryCache) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 0, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}

// sweep drops expired entries at most once per memorySweepEvery. Callers hold mu.
func (r *MemoryCache) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < memorySweepEvery {
		return
	}
	r.lastSweep = now
	for k, e := range r.entries {
		if !now.Before(e.expiresAt) {
			delete(r.entries, k)
		}
	}
	for k, e := range r.rateLimits {
		if now.After(e.expiresAt) {
			delete(r.rateLimits, k)
		}
	}
}
