package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) LatestOTP(ctx context.Context, phone string) (*models.OTPCode, error) {
	var (
		o        models.OTPCode
		cooldown *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, phone, code, expires_at, attempts, cooldown_until, created_at
		FROM otp_codes WHERE phone = $1
		ORDER BY created_at DESC LIMIT 1`, phone).
		Scan(&o.ID, &o.Phone, &o.Code, &o.ExpiresAt, &o.Attempts, &cooldown, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOTPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get otp: %w", err)
	}
	if cooldown != nil {
		o.CooldownUntil = *cooldown
	}
	return &o, nil
}

func (s *Store) ReplaceOTP(ctx context.Context, code *models.OTPCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM otp_codes WHERE phone = $1`, code.Phone); err != nil {
		return fmt.Errorf("postgres: delete old otp codes: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO otp_codes (id, phone, code, expires_at, attempts, cooldown_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		code.ID, code.Phone, code.Code, code.ExpiresAt, code.Attempts, nullableTime(code.CooldownUntil), code.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert otp code: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) UpdateOTPAttempts(ctx context.Context, id string, attempts int, cooldownUntil time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE otp_codes SET attempts = $1, cooldown_until = $2 WHERE id = $3`,
		attempts, nullableTime(cooldownUntil), id)
	if err != nil {
		return fmt.Errorf("postgres: update otp attempts: %w", err)
	}
	return nil
}

func (s *Store) DeleteOTP(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM otp_codes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete otp: %w", err)
	}
	return nil
}

// PurgeExpiredOTP removes expired codes that are not holding a cooldown.
func (s *Store) PurgeExpiredOTP(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM otp_codes
		WHERE expires_at < $1 AND (cooldown_until IS NULL OR cooldown_until < $1)`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge otp codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
