package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/jackc/pgx/v5"
)

// Claim inserts a pending claim or takes over a stale pending one.
func (s *Store) Claim(ctx context.Context, eventRef, kind string, now, staleBefore time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO reminder_claims (external_event_id, reminder_kind, status, created_at, updated_at)
		VALUES ($1, $2, 'pending', $3, $3)
		ON CONFLICT (external_event_id, reminder_kind) DO NOTHING`,
		eventRef, kind, now)
	if err != nil {
		return false, fmt.Errorf("postgres: insert claim: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	tag, err = s.db.Exec(ctx, `
		UPDATE reminder_claims SET created_at = $1, updated_at = $1
		WHERE external_event_id = $2 AND reminder_kind = $3
		  AND status = 'pending' AND created_at < $4`,
		now, eventRef, kind, staleBefore)
	if err != nil {
		return false, fmt.Errorf("postgres: reclaim stale claim: %w", err)
	}
	if tag.RowsAffected() == 1 {
		s.logger.Warn().Str("event_ref", eventRef).Str("kind", kind).Msg("stale reminder claim taken over")
		return true, nil
	}
	return false, nil
}

func (s *Store) MarkSent(ctx context.Context, eventRef, kind string) error {
	return s.setClaimStatus(ctx, eventRef, kind, models.ClaimSent, "")
}

func (s *Store) MarkFailed(ctx context.Context, eventRef, kind, errMsg string) error {
	return s.setClaimStatus(ctx, eventRef, kind, models.ClaimFailed, errMsg)
}

func (s *Store) setClaimStatus(ctx context.Context, eventRef, kind, status, errMsg string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminder_claims SET status = $1, error_message = $2, updated_at = NOW()
		WHERE external_event_id = $3 AND reminder_kind = $4`,
		status, errMsg, eventRef, kind)
	if err != nil {
		return fmt.Errorf("postgres: update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClaimNotFound
	}
	return nil
}

func (s *Store) GetClaim(ctx context.Context, eventRef, kind string) (*models.ReminderClaim, error) {
	var c models.ReminderClaim
	err := s.db.QueryRow(ctx, `
		SELECT external_event_id, reminder_kind, status, error_message, created_at
		FROM reminder_claims WHERE external_event_id = $1 AND reminder_kind = $2`,
		eventRef, kind).Scan(&c.EventRef, &c.Kind, &c.Status, &c.ErrorMessage, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get claim: %w", err)
	}
	return &c, nil
}
