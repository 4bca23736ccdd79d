package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
)

// Claim takes ownership of the (eventRef, kind) reminder. A fresh row wins;
// a pending row older than staleBefore is taken over. Sent and failed rows
// are never reclaimed.
func (db *DB) Claim(ctx context.Context, eventRef, kind string, now, staleBefore time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
        INSERT INTO reminder_claims (external_event_id, reminder_kind, status, error_message, created_at, updated_at)
        VALUES (?, ?, 'pending', '', ?, ?)
        ON CONFLICT (external_event_id, reminder_kind) DO NOTHING`,
		eventRef, kind, toUnix(now), toUnix(now))
	if err != nil {
		return false, fmt.Errorf("failed to insert claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	res, err = db.ExecContext(ctx, `
        UPDATE reminder_claims SET created_at = ?, updated_at = ?
        WHERE external_event_id = ? AND reminder_kind = ?
          AND status = 'pending' AND created_at < ?`,
		toUnix(now), toUnix(now), eventRef, kind, toUnix(staleBefore))
	if err != nil {
		return false, fmt.Errorf("failed to reclaim stale claim: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		db.logger.Warn().Str("event_ref", eventRef).Str("kind", kind).Msg("stale reminder claim taken over")
	}
	return n == 1, nil
}

func (db *DB) MarkSent(ctx context.Context, eventRef, kind string) error {
	return db.setClaimStatus(ctx, eventRef, kind, models.ClaimSent, "")
}

func (db *DB) MarkFailed(ctx context.Context, eventRef, kind, errMsg string) error {
	return db.setClaimStatus(ctx, eventRef, kind, models.ClaimFailed, errMsg)
}

func (db *DB) setClaimStatus(ctx context.Context, eventRef, kind, status, errMsg string) error {
	res, err := db.ExecContext(ctx, `
        UPDATE reminder_claims SET status = ?, error_message = ?, updated_at = ?
        WHERE external_event_id = ? AND reminder_kind = ?`,
		status, errMsg, time.Now().Unix(), eventRef, kind)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrClaimNotFound
	}
	return nil
}

func (db *DB) GetClaim(ctx context.Context, eventRef, kind string) (*models.ReminderClaim, error) {
	var (
		c       models.ReminderClaim
		created int64
	)
	err := db.QueryRowContext(ctx, `
        SELECT external_event_id, reminder_kind, status, error_message, created_at
        FROM reminder_claims WHERE external_event_id = ? AND reminder_kind = ?`,
		eventRef, kind).Scan(&c.EventRef, &c.Kind, &c.Status, &c.ErrorMessage, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	c.CreatedAt = fromUnix(created)
	return &c, nil
}
