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

const appointmentSelect = `
	SELECT a.id, a.customer_id, c.name, c.phone, c.email,
	       a.service_name, a.service_display_name, a.start_at, a.duration_minutes,
	       a.status, COALESCE(a.external_event_id, ''), a.notes, a.created_at, a.updated_at
	FROM appointments a
	JOIN customers c ON c.id = a.customer_id`

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(&a.ID, &a.CustomerID, &a.CustomerName, &a.CustomerPhone, &a.CustomerEmail,
		&a.ServiceName, &a.ServiceDisplayName, &a.StartAt, &a.DurationMinutes,
		&a.Status, &a.ExternalEventID, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) queryAppointments(ctx context.Context, query string, args ...any) ([]*models.Appointment, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query appointments: %w", err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (s *Store) Create(ctx context.Context, appt *models.Appointment, customer *models.Customer) error {
	if customer == nil || customer.ID == "" {
		return errors.New("postgres: create appointment: customer is required")
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.StatusActive
	}
	now := time.Now().UTC()
	appt.CreatedAt, appt.UpdatedAt = now, now
	appt.CustomerID = customer.ID
	appt.CustomerName = customer.Name
	appt.CustomerPhone = customer.Phone
	appt.CustomerEmail = customer.Email

	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, customer_id, service_name, service_display_name, start_at,
			duration_minutes, status, external_event_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		appt.ID, appt.CustomerID, appt.ServiceName, appt.ServiceDisplayName, appt.StartAt,
		appt.DurationMinutes, appt.Status, nullableString(appt.ExternalEventID), appt.Notes, now, now)
	if err != nil {
		return fmt.Errorf("postgres: create appointment: %w", err)
	}
	return nil
}

func (s *Store) AttachExternalEventID(ctx context.Context, appointmentID, eventID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET external_event_id = $1, updated_at = NOW() WHERE id = $2`,
		nullableString(eventID), appointmentID)
	if err != nil {
		return fmt.Errorf("postgres: attach event id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAppointmentNotFound
	}
	return nil
}

func (s *Store) ListActiveFutureByPhone(ctx context.Context, phone string, now time.Time) ([]*models.Appointment, error) {
	return s.queryAppointments(ctx, appointmentSelect+`
		WHERE c.phone = $1 AND a.status = 'active' AND a.start_at > $2
		ORDER BY a.start_at`, phone, now)
}

func (s *Store) CountActiveFutureByPhone(ctx context.Context, phone string, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		WHERE c.phone = $1 AND a.status = 'active' AND a.start_at > $2`,
		phone, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count appointments: %w", err)
	}
	return count, nil
}

func (s *Store) GetByRef(ctx context.Context, ref string) (*models.Appointment, error) {
	a, err := scanAppointment(s.db.QueryRow(ctx, appointmentSelect+`
		WHERE a.id = $1 OR a.external_event_id = $1 LIMIT 1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get appointment: %w", err)
	}
	return a, nil
}

func (s *Store) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.StatusCancelled)
}

func (s *Store) Complete(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.StatusCompleted)
}

func (s *Store) transition(ctx context.Context, id, status string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'active'`, status, id)
	if err != nil {
		return fmt.Errorf("postgres: update appointment status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAppointmentNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: read appointment status: %w", err)
	}
	return domain.ErrInvalidTransition
}

func (s *Store) ListActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	return s.queryAppointments(ctx, appointmentSelect+`
		WHERE a.status = 'active' AND a.start_at >= $1 AND a.start_at < $2
		ORDER BY a.start_at`, from, to)
}

func (s *Store) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = 'completed', updated_at = NOW()
		WHERE status = 'active' AND start_at + make_interval(mins => duration_minutes) <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: complete past appointments: %w", err)
	}
	return tag.RowsAffected(), nil
}
