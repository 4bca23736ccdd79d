package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock, nil), mock
}

var appointmentCols = []string{
	"id", "customer_id", "name", "phone", "email",
	"service_name", "service_display_name", "start_at", "duration_minutes",
	"status", "external_event_id", "notes", "created_at", "updated_at",
}

func TestCreateCustomer(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO customers").
		WithArgs(pgxmock.AnyArg(), "dana", "+972501234567", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	c := &models.Customer{Name: "dana", Phone: "+972501234567"}
	require.NoError(t, s.CreateCustomer(ctx, c))
	assert.NotEmpty(t, c.ID)

	mock.ExpectExec("INSERT INTO customers").
		WithArgs(pgxmock.AnyArg(), "dana", "+972501234567", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := s.CreateCustomer(ctx, &models.Customer{Name: "dana", Phone: "+972501234567"})
	assert.ErrorIs(t, err, domain.ErrCustomerExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCustomerByPhone(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM customers WHERE phone").
		WithArgs("+972501234567").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "email", "created_at", "updated_at"}).
			AddRow("c1", "dana", "+972501234567", "", now, now))
	c, err := s.GetCustomerByPhone(ctx, "+972501234567")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	mock.ExpectQuery("FROM customers WHERE phone").
		WithArgs("+972500000000").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "email", "created_at", "updated_at"}))
	_, err = s.GetCustomerByPhone(ctx, "+972500000000")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestListCustomersWithSearch(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT").WithArgs("%dana%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2 OFFSET $3")).WithArgs("%dana%", 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "email", "created_at", "updated_at"}).
			AddRow("c1", "dana", "+972501234567", "", now, now))

	customers, total, err := s.ListCustomers(context.Background(), " dana ", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, customers, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCustomer(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM customers").WithArgs("c1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM customers").WithArgs("c2").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteCustomer(context.Background(), "c1"))
	assert.ErrorIs(t, s.DeleteCustomer(context.Background(), "c2"), domain.ErrCustomerNotFound)
}

func TestGetByRef(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM appointments a").WithArgs("evt-1").
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(
			"a1", "c1", "dana", "+972501234567", "",
			"gel_polish", "לק ג'ל", start, 60,
			"active", "evt-1", "", start, start))

	a, err := s.GetByRef(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, "evt-1", a.ExternalEventID)
	assert.True(t, a.StartAt.Equal(start))

	mock.ExpectQuery("FROM appointments a").WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(appointmentCols))
	_, err = s.GetByRef(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrAppointmentNotFound)
}

func TestCancelTransitions(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs(models.StatusCancelled, "a1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.Cancel(ctx, "a1"))

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs(models.StatusCancelled, "a2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM appointments").WithArgs("a2").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("cancelled"))
	assert.ErrorIs(t, s.Cancel(ctx, "a2"), domain.ErrInvalidTransition)

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs(models.StatusCompleted, "a3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM appointments").WithArgs("a3").
		WillReturnRows(pgxmock.NewRows([]string{"status"}))
	assert.ErrorIs(t, s.Complete(ctx, "a3"), domain.ErrAppointmentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePast(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectExec("UPDATE appointments SET status = 'completed'").WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.CompletePast(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestClaim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	stale := now.Add(-10 * time.Minute)

	t.Run("fresh insert wins", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO reminder_claims").
			WithArgs("evt-1", models.ReminderDayBefore, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		ok, err := s.Claim(ctx, "evt-1", models.ReminderDayBefore, now, stale)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale reclaim", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO reminder_claims").
			WithArgs("evt-1", models.ReminderDayBefore, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectExec("UPDATE reminder_claims").
			WithArgs(now, "evt-1", models.ReminderDayBefore, stale).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		ok, err := s.Claim(ctx, "evt-1", models.ReminderDayBefore, now, stale)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("held elsewhere", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO reminder_claims").
			WithArgs("evt-1", models.ReminderDayBefore, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectExec("UPDATE reminder_claims").
			WithArgs(now, "evt-1", models.ReminderDayBefore, stale).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		ok, err := s.Claim(ctx, "evt-1", models.ReminderDayBefore, now, stale)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO reminder_claims").
			WithArgs("evt-1", models.ReminderDayBefore, now).
			WillReturnError(errors.New("conn reset"))
		ok, err := s.Claim(ctx, "evt-1", models.ReminderDayBefore, now, stale)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestMarkFailed(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE reminder_claims SET status").
		WithArgs(models.ClaimFailed, "boom", "evt-1", models.ReminderDayOf).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE reminder_claims SET status").
		WithArgs(models.ClaimSent, "", "evt-2", models.ReminderDayOf).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.MarkFailed(context.Background(), "evt-1", models.ReminderDayOf, "boom"))
	assert.ErrorIs(t, s.MarkSent(context.Background(), "evt-2", models.ReminderDayOf), domain.ErrClaimNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceOTP(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM otp_codes").WithArgs("+972501234567").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO otp_codes").
		WithArgs(pgxmock.AnyArg(), "+972501234567", "123456", pgxmock.AnyArg(), 0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	code := &models.OTPCode{Phone: "+972501234567", Code: "123456", ExpiresAt: time.Now().Add(5 * time.Minute)}
	require.NoError(t, s.ReplaceOTP(context.Background(), code))
	assert.NotEmpty(t, code.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestOTP(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	cols := []string{"id", "phone", "code", "expires_at", "attempts", "cooldown_until", "created_at"}

	mock.ExpectQuery("FROM otp_codes").WithArgs("+972501234567").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("o1", "+972501234567", "123456", now, 1, nil, now))
	o, err := s.LatestOTP(context.Background(), "+972501234567")
	require.NoError(t, err)
	assert.Equal(t, 1, o.Attempts)
	assert.True(t, o.CooldownUntil.IsZero())

	mock.ExpectQuery("FROM otp_codes").WithArgs("+972500000000").WillReturnRows(pgxmock.NewRows(cols))
	_, err = s.LatestOTP(context.Background(), "+972500000000")
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
}

func TestAdvisoryLocker(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	locker := NewAdvisoryLocker(mock, ReminderLockKey, nil)

	t.Run("acquired", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("pg_try_advisory_xact_lock").WithArgs(ReminderLockKey).
			WillReturnRows(pgxmock.NewRows([]string{"ok"}).AddRow(true))
		mock.ExpectRollback()

		release, ok, err := locker.TryLock(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		release()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("busy", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("pg_try_advisory_xact_lock").WithArgs(ReminderLockKey).
			WillReturnRows(pgxmock.NewRows([]string{"ok"}).AddRow(false))
		mock.ExpectRollback()

		release, ok, err := locker.TryLock(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, release)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
