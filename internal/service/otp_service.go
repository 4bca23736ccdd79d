package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/config"
	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/notify"
	"github.com/adirsaban8-oss/ADIRS/internal/phone"

	"github.com/rs/zerolog"
)

// OTP requests allowed per phone within otpRequestWindow.
const (
	otpRequestLimit  = 5
	otpRequestWindow = 15 * time.Minute
)

type OTPService struct {
	store      domain.OTPStore
	sms        domain.SMSSender
	limiter    domain.CacheStore
	studioName string
	cfg        config.OTPConfig
	now        func() time.Time
	generate   func(length int) (string, error)
	logger     *zerolog.Logger
}

// NewOTPService builds the service. limiter may be nil to disable request throttling.
func NewOTPService(
	store domain.OTPStore,
	sms domain.SMSSender,
	limiter domain.CacheStore,
	studioName string,
	cfg config.OTPConfig,
	logger *zerolog.Logger,
) *OTPService {
	if cfg.Length <= 0 {
		cfg.Length = models.DefaultOTPLength
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = models.DefaultOTPExpiryMinutes * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = models.DefaultOTPMaxAttempts
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = models.DefaultOTPCooldownMinutes * time.Minute
	}
	return &OTPService{
		store:      store,
		sms:        sms,
		limiter:    limiter,
		studioName: studioName,
		cfg:        cfg,
		now:        time.Now,
		generate:   generateCode,
		logger:     logger,
	}
}

// Request issues a fresh code for the phone and sends it by SMS. mock is
// true when the SMS was not delivered and the code only reached the log.
func (s *OTPService) Request(ctx context.Context, rawPhone string) (mock bool, err error) {
	if strings.TrimSpace(rawPhone) == "" {
		return false, domain.ErrInvalidPhone
	}
	canonical, err := phone.Normalize(rawPhone)
	if err != nil {
		return false, domain.ErrInvalidPhone.With(err)
	}

	if s.limiter != nil {
		ok, err := s.limiter.CheckRateLimit(ctx, "otp:"+canonical, otpRequestLimit, otpRequestWindow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("otp rate limiter unavailable")
		} else if !ok {
			return false, domain.ErrTooManyRequests
		}
	}

	now := s.now()
	latest, err := s.store.LatestOTP(ctx, canonical)
	switch {
	case err == nil && latest.InCooldown(now):
		s.logger.Warn().Str("phone", phone.Mask(canonical)).Time("cooldown_until", latest.CooldownUntil).Msg("otp requested during cooldown")
		return false, cooldownError(latest.CooldownUntil, now)
	case err != nil && !errors.Is(err, domain.ErrOTPNotFound):
		return false, domain.ErrTechnical.With(err)
	}

	code, err := s.generate(s.cfg.Length)
	if err != nil {
		return false, domain.ErrTechnical.With(err)
	}
	otp := &models.OTPCode{
		Phone:     canonical,
		Code:      code,
		ExpiresAt: now.Add(s.cfg.Expiry),
		CreatedAt: now,
	}
	if err := s.store.ReplaceOTP(ctx, otp); err != nil {
		return false, domain.ErrTechnical.With(err)
	}

	err = s.sms.SendSMS(ctx, canonical, notify.OTPMessage(s.studioName, code, s.cfg.Expiry))
	if err != nil {
		if !errors.Is(err, notify.ErrDisabled) {
			s.logger.Warn().Err(err).Str("phone", phone.Mask(canonical)).Msg("otp sms failed")
		}
		s.logger.Info().Str("phone", phone.Mask(canonical)).Str("code", code).Msg("otp issued without sms")
		return true, nil
	}
	s.logger.Info().Str("phone", phone.Mask(canonical)).Msg("otp sent")
	return false, nil
}

// Verify checks code against the latest code for the phone. A correct code
// is consumed; wrong codes count towards the cooldown.
func (s *OTPService) Verify(ctx context.Context, rawPhone, code string) error {
	code = strings.TrimSpace(code)
	if strings.TrimSpace(rawPhone) == "" || code == "" {
		return domain.ErrMissingField
	}
	canonical, err := phone.Normalize(rawPhone)
	if err != nil {
		return domain.ErrInvalidPhone.With(err)
	}

	stored, err := s.store.LatestOTP(ctx, canonical)
	if errors.Is(err, domain.ErrOTPNotFound) {
		return domain.ErrOTPNotFound
	}
	if err != nil {
		return domain.ErrTechnical.With(err)
	}

	now := s.now()
	if stored.InCooldown(now) {
		return cooldownError(stored.CooldownUntil, now)
	}
	if stored.ExpiresAt.Before(now) {
		if err := s.store.DeleteOTP(ctx, stored.ID); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete expired otp")
		}
		return domain.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
		return s.recordWrongCode(ctx, stored, canonical, now)
	}

	if err := s.store.DeleteOTP(ctx, stored.ID); err != nil {
		return domain.ErrTechnical.With(err)
	}
	s.logger.Info().Str("phone", phone.Mask(canonical)).Msg("otp verified")
	return nil
}

func (s *OTPService) recordWrongCode(ctx context.Context, stored *models.OTPCode, canonical string, now time.Time) error {
	attempts := stored.Attempts + 1
	s.logger.Warn().
		Str("phone", phone.Mask(canonical)).
		Int("attempt", attempts).
		Int("max_attempts", s.cfg.MaxAttempts).
		Msg("wrong otp code")

	if attempts >= s.cfg.MaxAttempts {
		if err := s.store.UpdateOTPAttempts(ctx, stored.ID, attempts, now.Add(s.cfg.Cooldown)); err != nil {
			return domain.ErrTechnical.With(err)
		}
		return domain.ErrOTPLocked.WithMessage(
			fmt.Sprintf("יותר מדי ניסיונות שגויים. נסי שוב בעוד %d דקות", int(s.cfg.Cooldown/time.Minute)))
	}

	if err := s.store.UpdateOTPAttempts(ctx, stored.ID, attempts, time.Time{}); err != nil {
		return domain.ErrTechnical.With(err)
	}
	return domain.ErrOTPWrongCode.WithMessage(
		fmt.Sprintf("קוד שגוי. נותרו %d ניסיונות", s.cfg.MaxAttempts-attempts))
}

func cooldownError(until, now time.Time) error {
	minutes := int((until.Sub(now) + time.Minute - 1) / time.Minute)
	return domain.ErrOTPCooldown.WithMessage(fmt.Sprintf("יותר מדי ניסיונות. נסי שוב בעוד %d דקות", minutes))
}

func generateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
