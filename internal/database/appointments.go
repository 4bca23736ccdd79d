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

const appointmentSelect = `
    SELECT a.id, a.customer_id, c.name, c.phone, c.email,
           a.service_name, a.service_display_name, a.start_at, a.duration_minutes,
           a.status, a.external_event_id, a.notes, a.created_at, a.updated_at
    FROM appointments a
    JOIN customers c ON c.id = a.customer_id`

func scanAppointment(row interface{ Scan(...any) error }) (*models.Appointment, error) {
	var (
		a                       models.Appointment
		start, created, updated int64
		eventID                 sql.NullString
	)
	err := row.Scan(&a.ID, &a.CustomerID, &a.CustomerName, &a.CustomerPhone, &a.CustomerEmail,
		&a.ServiceName, &a.ServiceDisplayName, &start, &a.DurationMinutes,
		&a.Status, &eventID, &a.Notes, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.StartAt = fromUnix(start)
	a.ExternalEventID = eventID.String
	a.CreatedAt = fromUnix(created)
	a.UpdatedAt = fromUnix(updated)
	return &a, nil
}

func (db *DB) queryAppointments(ctx context.Context, query string, args ...any) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// Create persists appt for an existing customer. appt.ID, status and
// timestamps are filled when empty.
func (db *DB) Create(ctx context.Context, appt *models.Appointment, customer *models.Customer) error {
	if customer == nil || customer.ID == "" {
		return fmt.Errorf("failed to create appointment: customer is required")
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

	_, err := db.ExecContext(ctx, `
        INSERT INTO appointments (
            id, customer_id, service_name, service_display_name, start_at, duration_minutes,
            status, external_event_id, notes, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.CustomerID, appt.ServiceName, appt.ServiceDisplayName,
		toUnix(appt.StartAt), appt.DurationMinutes, appt.Status,
		nullString(appt.ExternalEventID), appt.Notes, toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	db.logger.Info().
		Str("appointment_id", appt.ID).
		Str("service", appt.ServiceName).
		Time("start_at", appt.StartAt).
		Msg("appointment created")
	return nil
}

func (db *DB) AttachExternalEventID(ctx context.Context, appointmentID, eventID string) error {
	res, err := db.ExecContext(ctx, `
        UPDATE appointments SET external_event_id = ?, updated_at = ? WHERE id = ?`,
		nullString(eventID), time.Now().Unix(), appointmentID)
	if err != nil {
		return fmt.Errorf("failed to attach event id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAppointmentNotFound
	}
	return nil
}

func (db *DB) ListActiveFutureByPhone(ctx context.Context, phone string, now time.Time) ([]*models.Appointment, error) {
	return db.queryAppointments(ctx, appointmentSelect+`
        WHERE c.phone = ? AND a.status = 'active' AND a.start_at > ?
        ORDER BY a.start_at`, phone, toUnix(now))
}

func (db *DB) CountActiveFutureByPhone(ctx context.Context, phone string, now time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM appointments a
        JOIN customers c ON c.id = a.customer_id
        WHERE c.phone = ? AND a.status = 'active' AND a.start_at > ?`,
		phone, toUnix(now)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

// GetByRef resolves either an appointment id or an external event id.
func (db *DB) GetByRef(ctx context.Context, ref string) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx, appointmentSelect+`
        WHERE a.id = ? OR a.external_event_id = ? LIMIT 1`, ref, ref)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

func (db *DB) Cancel(ctx context.Context, id string) error {
	return db.transition(ctx, id, models.StatusCancelled)
}

func (db *DB) Complete(ctx context.Context, id string) error {
	return db.transition(ctx, id, models.StatusCompleted)
}

// transition moves an active appointment to status. Rows in any other state
// are left untouched and reported as domain.ErrInvalidTransition.
func (db *DB) transition(ctx context.Context, id, status string) error {
	res, err := db.ExecContext(ctx, `
        UPDATE appointments SET status = ?, updated_at = ?
        WHERE id = ? AND status = 'active'`,
		status, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = db.QueryRowContext(ctx, `SELECT status FROM appointments WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAppointmentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read appointment status: %w", err)
	}
	return domain.ErrInvalidTransition
}

// ListActiveBetween returns active appointments starting in [from, to).
func (db *DB) ListActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	return db.queryAppointments(ctx, appointmentSelect+`
        WHERE a.status = 'active' AND a.start_at >= ? AND a.start_at < ?
        ORDER BY a.start_at`, toUnix(from), toUnix(to))
}

// CompletePast marks active appointments that ended at or before now as completed.
func (db *DB) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
        UPDATE appointments SET status = 'completed', updated_at = ?
        WHERE status = 'active' AND start_at + duration_minutes * 60 <= ?`,
		toUnix(now), toUnix(now))
	if err != nil {
		return 0, fmt.Errorf("failed to complete past appointments: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		db.logger.Info().Int64("count", n).Msg("past appointments completed")
	}
	return n, nil
}
