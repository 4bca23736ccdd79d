package domain

import (
	"context"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AppointmentRepository is the source of truth for appointments.
// Status transitions are active -> cancelled | completed only.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *models.Appointment, customer *models.Customer) error
	AttachExternalEventID(ctx context.Context, appointmentID, eventID string) error
	ListActiveFutureByPhone(ctx context.Context, phone string, now time.Time) ([]*models.Appointment, error)
	CountActiveFutureByPhone(ctx context.Context, phone string, now time.Time) (int, error)
	GetByRef(ctx context.Context, ref string) (*models.Appointment, error)
	Cancel(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Appointment, error)
	CompletePast(ctx context.Context, now time.Time) (int64, error)
}

// BusyIntervalSource reports occupied ranges on a local day. A failure is
// always an error, never an empty slice.
type BusyIntervalSource interface {
	BusyIntervals(ctx context.Context, day time.Time) ([]models.BusyInterval, error)
}

// BlockedSlotSource returns admin-blocked "HH:MM" times for a "YYYY-MM-DD" date.
type BlockedSlotSource interface {
	BlockedTimes(ctx context.Context, date string) ([]string, error)
}

// CalendarEvents mirrors appointments into the external calendar.
type CalendarEvents interface {
	CreateEvent(ctx context.Context, appt *models.Appointment) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

type CustomerStore interface {
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	ListCustomers(ctx context.Context, search string, limit, offset int) ([]*models.Customer, int, error)
	DeleteCustomer(ctx context.Context, id string) error
	CountActiveFutureByCustomer(ctx context.Context, customerID string, now time.Time) (int, error)
}

type OTPStore interface {
	LatestOTP(ctx context.Context, phone string) (*models.OTPCode, error)
	ReplaceOTP(ctx context.Context, code *models.OTPCode) error
	UpdateOTPAttempts(ctx context.Context, id string, attempts int, cooldownUntil time.Time) error
	DeleteOTP(ctx context.Context, id string) error
}

// ClaimStore persists reminder claims keyed by (eventRef, kind).
type ClaimStore interface {
	// Claim inserts a pending claim, or takes over a pending claim created
	// before staleBefore. It reports whether the caller now owns the claim.
	Claim(ctx context.Context, eventRef, kind string, now, staleBefore time.Time) (bool, error)
	MarkSent(ctx context.Context, eventRef, kind string) error
	MarkFailed(ctx context.Context, eventRef, kind, errMsg string) error
	GetClaim(ctx context.Context, eventRef, kind string) (*models.ReminderClaim, error)
}

// RunLocker guards a whole reminder run. TryLock never blocks; release must
// be called exactly once when ok is true.
type RunLocker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// CacheStore holds short-lived per-phone appointment lists and rate counters.
type CacheStore interface {
	GetAppointments(ctx context.Context, phone string) ([]*models.Appointment, bool, error)
	SetAppointments(ctx context.Context, phone string, appts []*models.Appointment) error
	Invalidate(ctx context.Context, phone string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier sends customer and owner notifications for appointment events.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt *models.Appointment) error
	BookingCancelled(ctx context.Context, appt *models.Appointment) error
	Reminder(ctx context.Context, appt *models.Appointment, kind string) error
	OwnerAlert(ctx context.Context, text string) error
}

// NotificationQueue accepts async notification work. Enqueue never blocks.
type NotificationQueue interface {
	Enqueue(ctx context.Context, kind string, appt *models.Appointment) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
