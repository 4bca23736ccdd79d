package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/google"
	"github.com/adirsaban8-oss/ADIRS/internal/metrics"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
)

// CalendarClient is the subset of google.CalendarService the calendar-backed
// repository needs.
type CalendarClient interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]*calendar.Event, error)
	GetEvent(ctx context.Context, eventID string) (*calendar.Event, error)
	FindByAppointmentID(ctx context.Context, appointmentID string) (*calendar.Event, error)
	CreateEvent(ctx context.Context, appt *models.Appointment) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
	UpdatePayload(ctx context.Context, eventID string, appt *models.Appointment) error
}

// CalendarAppointments stores appointments as calendar events. The event
// description holds the booking payload; deleting the event cancels it.
type CalendarAppointments struct {
	cal       CalendarClient
	loc       *time.Location
	lookahead time.Duration
	logger    *zerolog.Logger
}

// NewCalendarAppointments scans [now, now+lookahead) for per-phone queries.
func NewCalendarAppointments(cal CalendarClient, loc *time.Location, lookahead time.Duration, logger *zerolog.Logger) *CalendarAppointments {
	if loc == nil {
		loc = time.UTC
	}
	if lookahead <= 0 {
		lookahead = 31 * 24 * time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CalendarAppointments{cal: cal, loc: loc, lookahead: lookahead, logger: logger}
}

func (r *CalendarAppointments) Create(ctx context.Context, appt *models.Appointment, customer *models.Customer) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = models.StatusActive
	}
	if customer != nil {
		appt.CustomerID = customer.ID
		appt.CustomerName = customer.Name
		appt.CustomerPhone = customer.Phone
		appt.CustomerEmail = customer.Email
	}
	now := time.Now().UTC()
	appt.CreatedAt, appt.UpdatedAt = now, now

	eventID, err := r.cal.CreateEvent(ctx, appt)
	if err != nil {
		return fmt.Errorf("failed to create calendar appointment: %w", err)
	}
	appt.ExternalEventID = eventID
	return nil
}

// AttachExternalEventID is a no-op: the event id is assigned by Create.
func (r *CalendarAppointments) AttachExternalEventID(context.Context, string, string) error {
	return nil
}

// decode converts events to appointments. Malformed events are logged and
// counted but excluded from the result.
func (r *CalendarAppointments) decode(events []*calendar.Event) []*models.Appointment {
	appts := make([]*models.Appointment, 0, len(events))
	for _, ev := range events {
		a, err := google.AppointmentFromEvent(ev, r.loc)
		if err != nil {
			metrics.IncMalformedEvent()
			r.logger.Warn().Err(err).Str("event_id", ev.Id).Str("summary", ev.Summary).Msg("malformed calendar event")
			continue
		}
		appts = append(appts, a)
	}
	return appts
}

func (r *CalendarAppointments) ListActiveFutureByPhone(ctx context.Context, phone string, now time.Time) ([]*models.Appointment, error) {
	events, err := r.cal.ListEvents(ctx, now, now.Add(r.lookahead))
	if err != nil {
		return nil, err
	}
	var out []*models.Appointment
	for _, a := range r.decode(events) {
		if a.Status == models.StatusActive && a.CustomerPhone == phone && a.StartAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *CalendarAppointments) CountActiveFutureByPhone(ctx context.Context, phone string, now time.Time) (int, error) {
	appts, err := r.ListActiveFutureByPhone(ctx, phone, now)
	if err != nil {
		return 0, err
	}
	return len(appts), nil
}

// GetByRef resolves an appointment id (uuid) through the private event
// property, and anything else as an event id.
func (r *CalendarAppointments) GetByRef(ctx context.Context, ref string) (*models.Appointment, error) {
	var (
		ev  *calendar.Event
		err error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		ev, err = r.cal.FindByAppointmentID(ctx, ref)
	} else {
		ev, err = r.cal.GetEvent(ctx, ref)
	}
	if errors.Is(err, google.ErrEventNotFound) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}

	appt, err := google.AppointmentFromEvent(ev, r.loc)
	if err != nil {
		metrics.IncMalformedEvent()
		r.logger.Warn().Err(err).Str("event_id", ev.Id).Msg("malformed calendar event")
		return nil, err
	}
	return appt, nil
}

// movable returns the appointment when it may move to status.
func (r *CalendarAppointments) movable(ctx context.Context, id, status string) (*models.Appointment, error) {
	appt, err := r.GetByRef(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(appt.Status, status) {
		return nil, domain.ErrInvalidTransition
	}
	return appt, nil
}

func (r *CalendarAppointments) Cancel(ctx context.Context, id string) error {
	appt, err := r.movable(ctx, id, models.StatusCancelled)
	if err != nil {
		return err
	}
	return r.cal.DeleteEvent(ctx, appt.ExternalEventID)
}

func (r *CalendarAppointments) Complete(ctx context.Context, id string) error {
	appt, err := r.movable(ctx, id, models.StatusCompleted)
	if err != nil {
		return err
	}
	appt.Status = models.StatusCompleted
	return r.cal.UpdatePayload(ctx, appt.ExternalEventID, appt)
}

func (r *CalendarAppointments) ListActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	events, err := r.cal.ListEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []*models.Appointment
	for _, a := range r.decode(events) {
		if a.Status == models.StatusActive && !a.StartAt.Before(from) && a.StartAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

// CompletePast is a no-op; past active events are treated as completed.
func (r *CalendarAppointments) CompletePast(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// lookupHistory is how far back LookupCustomer scans for past bookings.
const lookupHistory = 180 * 24 * time.Hour

// LookupCustomer returns the details of the most recent booking made with
// phone, or domain.ErrCustomerNotFound.
func (r *CalendarAppointments) LookupCustomer(ctx context.Context, phone string, now time.Time) (*models.Customer, error) {
	events, err := r.cal.ListEvents(ctx, now.Add(-lookupHistory), now.Add(r.lookahead))
	if err != nil {
		return nil, err
	}
	var latest *models.Appointment
	for _, a := range r.decode(events) {
		if a.CustomerPhone != phone {
			continue
		}
		if latest == nil || a.StartAt.After(latest.StartAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return &models.Customer{
		ID:    latest.CustomerID,
		Name:  latest.CustomerName,
		Phone: latest.CustomerPhone,
		Email: latest.CustomerEmail,
	}, nil
}
