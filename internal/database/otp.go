package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/google/uuid"
)

// LatestOTP returns the newest code issued to phone.
func (db *DB) LatestOTP(ctx context.Context, phone string) (*models.OTPCode, error) {
	var (
		o                          models.OTPCode
		expires, cooldown, created int64
	)
	err := db.QueryRowContext(ctx, `
        SELECT id, phone, code, expires_at, attempts, cooldown_until, created_at
        FROM otp_codes WHERE phone = ?
        ORDER BY created_at DESC, rowid DESC LIMIT 1`, phone).
		Scan(&o.ID, &o.Phone, &o.Code, &expires, &o.Attempts, &cooldown, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOTPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}
	o.ExpiresAt = fromUnix(expires)
	o.CooldownUntil = fromUnix(cooldown)
	o.CreatedAt = fromUnix(created)
	return &o, nil
}

// ReplaceOTP drops every code for the phone and stores code in its place.
func (db *DB) ReplaceOTP(ctx context.Context, code *models.OTPCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM otp_codes WHERE phone = ?`, code.Phone); err != nil {
		return fmt.Errorf("failed to delete old otp codes: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO otp_codes (id, phone, code, expires_at, attempts, cooldown_until, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.ID, code.Phone, code.Code, toUnix(code.ExpiresAt), code.Attempts,
		toUnix(code.CooldownUntil), toUnix(code.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert otp code: %w", err)
	}
	return tx.Commit()
}

func (db *DB) UpdateOTPAttempts(ctx context.Context, id string, attempts int, cooldownUntil time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE otp_codes SET attempts = ?, cooldown_until = ? WHERE id = ?`,
		attempts, toUnix(cooldownUntil), id)
	if err != nil {
		return fmt.Errorf("failed to update otp attempts: %w", err)
	}
	return nil
}

func (db *DB) DeleteOTP(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM otp_codes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}

// PurgeExpiredOTP removes expired codes whose cooldown, if any, has passed.
func (db *DB) PurgeExpiredOTP(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
        DELETE FROM otp_codes WHERE expires_at < ? AND cooldown_until < ?`,
		toUnix(now), toUnix(now))
	if err != nil {
		return 0, fmt.Errorf("failed to purge otp codes: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
