package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/config"
	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/notify"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]*models.OTPCode
	seq   int
}

func newMemoryOTPStore() *memoryOTPStore {
	return &memoryOTPStore{codes: map[string]*models.OTPCode{}}
}

func (s *memoryOTPStore) LatestOTP(_ context.Context, p string) (*models.OTPCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[p]
	if !ok {
		return nil, domain.ErrOTPNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryOTPStore) ReplaceOTP(_ context.Context, code *models.OTPCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	code.ID = strings.Repeat("x", s.seq)
	cp := *code
	s.codes[code.Phone] = &cp
	return nil
}

func (s *memoryOTPStore) UpdateOTPAttempts(_ context.Context, id string, attempts int, cooldownUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.ID == id {
			c.Attempts = attempts
			c.CooldownUntil = cooldownUntil
			return nil
		}
	}
	return domain.ErrOTPNotFound
}

func (s *memoryOTPStore) DeleteOTP(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, c := range s.codes {
		if c.ID == id {
			delete(s.codes, p)
		}
	}
	return nil
}

type recordingSMS struct {
	err  error
	sent []string
}

func (r *recordingSMS) SendSMS(_ context.Context, to, text string) error {
	r.sent = append(r.sent, to+"|"+text)
	return r.err
}

type otpFixture struct {
	store *memoryOTPStore
	sms   *recordingSMS
	svc   *OTPService
	clock time.Time
}

func newOTPFixture(limiter domain.CacheStore) *otpFixture {
	logger := zerolog.Nop()
	f := &otpFixture{store: newMemoryOTPStore(), sms: &recordingSMS{}, clock: fixedNow}
	f.svc = NewOTPService(f.store, f.sms, limiter, "LISHAI SIMANI", config.OTPConfig{}, &logger)
	f.svc.now = func() time.Time { return f.clock }
	f.svc.generate = func(int) (string, error) { return "123456", nil }
	return f
}

func TestOTPRequest_SendsCode(t *testing.T) {
	f := newOTPFixture(nil)

	mockMode, err := f.svc.Request(context.Background(), "050-123-4567")
	require.NoError(t, err)
	assert.False(t, mockMode)
	require.Len(t, f.sms.sent, 1)
	assert.True(t, strings.HasPrefix(f.sms.sent[0], canonicalPhone+"|"))
	assert.Contains(t, f.sms.sent[0], "123456")

	stored, err := f.store.LatestOTP(context.Background(), canonicalPhone)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(models.DefaultOTPExpiryMinutes*time.Minute), stored.ExpiresAt)
}

func TestOTPRequest_MockModeWithoutSMS(t *testing.T) {
	for _, smsErr := range []error{notify.ErrDisabled, errors.New("provider 500")} {
		f := newOTPFixture(nil)
		f.sms.err = smsErr

		mockMode, err := f.svc.Request(context.Background(), "0501234567")
		require.NoError(t, err)
		assert.True(t, mockMode)
	}
}

func TestOTPRequest_RateLimited(t *testing.T) {
	limiter := new(mockCache)
	limiter.On("CheckRateLimit", mock.Anything, "otp:"+canonicalPhone, otpRequestLimit, otpRequestWindow).Return(false, nil)
	f := newOTPFixture(limiter)

	_, err := f.svc.Request(context.Background(), "0501234567")
	assert.ErrorIs(t, err, domain.ErrTooManyRequests)
	assert.Empty(t, f.sms.sent)
}

func TestOTPRequest_LimiterFailureIsIgnored(t *testing.T) {
	limiter := new(mockCache)
	limiter.On("CheckRateLimit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	f := newOTPFixture(limiter)

	_, err := f.svc.Request(context.Background(), "0501234567")
	assert.NoError(t, err)
}

func TestOTPRequest_InvalidPhone(t *testing.T) {
	f := newOTPFixture(nil)
	_, err := f.svc.Request(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
	_, err = f.svc.Request(context.Background(), "123")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}

func TestOTPVerify_Success(t *testing.T) {
	f := newOTPFixture(nil)
	ctx := context.Background()
	_, err := f.svc.Request(ctx, "0501234567")
	require.NoError(t, err)

	require.NoError(t, f.svc.Verify(ctx, "+972501234567", " 123456 "))

	// consumed
	assert.ErrorIs(t, f.svc.Verify(ctx, "0501234567", "123456"), domain.ErrOTPNotFound)
}

func TestOTPVerify_WrongCodesLockThePhone(t *testing.T) {
	f := newOTPFixture(nil)
	ctx := context.Background()
	_, err := f.svc.Request(ctx, "0501234567")
	require.NoError(t, err)

	err = f.svc.Verify(ctx, "0501234567", "000000")
	require.ErrorIs(t, err, domain.ErrOTPWrongCode)
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Message, "נותרו 2")

	err = f.svc.Verify(ctx, "0501234567", "000000")
	require.ErrorIs(t, err, domain.ErrOTPWrongCode)

	err = f.svc.Verify(ctx, "0501234567", "000000")
	require.ErrorIs(t, err, domain.ErrOTPLocked)

	// the right code is refused during cooldown
	assert.ErrorIs(t, f.svc.Verify(ctx, "0501234567", "123456"), domain.ErrOTPCooldown)

	// and so is a new request
	_, err = f.svc.Request(ctx, "0501234567")
	require.ErrorIs(t, err, domain.ErrOTPCooldown)
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Message, "15 דקות")

	f.clock = fixedNow.Add(16 * time.Minute)
	_, err = f.svc.Request(ctx, "0501234567")
	assert.NoError(t, err)
	assert.NoError(t, f.svc.Verify(ctx, "0501234567", "123456"))
}

func TestOTPVerify_Expired(t *testing.T) {
	f := newOTPFixture(nil)
	ctx := context.Background()
	_, err := f.svc.Request(ctx, "0501234567")
	require.NoError(t, err)

	f.clock = fixedNow.Add(6 * time.Minute)
	assert.ErrorIs(t, f.svc.Verify(ctx, "0501234567", "123456"), domain.ErrOTPExpired)
	assert.ErrorIs(t, f.svc.Verify(ctx, "0501234567", "123456"), domain.ErrOTPNotFound)
}

func TestOTPVerify_MissingInput(t *testing.T) {
	f := newOTPFixture(nil)
	assert.ErrorIs(t, f.svc.Verify(context.Background(), "0501234567", " "), domain.ErrMissingField)
	assert.ErrorIs(t, f.svc.Verify(context.Background(), "", "123456"), domain.ErrMissingField)
}

func TestGenerateCode(t *testing.T) {
	code, err := generateCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}
