package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/availability"
	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/events"
	"github.com/adirsaban8-oss/ADIRS/internal/metrics"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/phone"

	"github.com/rs/zerolog"
)

// SlotChecker answers availability questions for a date.
type SlotChecker interface {
	Available(ctx context.Context, date string, duration time.Duration) (availability.Result, error)
	SlotFree(ctx context.Context, date, clock string, duration time.Duration) (bool, error)
	OnGrid(date, clock string, duration time.Duration) (bool, error)
}

type BookingRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Notes   string `json:"notes"`
}

type BookingResult struct {
	Appointment *models.Appointment
	// EventID is the external calendar event id, empty when none was created.
	EventID string
	// EmailQueued reports that a confirmation email was handed to the async sender.
	EmailQueued bool
}

// BookingDeps are the collaborators of BookingService. Calendar is nil when
// the calendar itself is the appointment store.
type BookingDeps struct {
	Repo         domain.AppointmentRepository
	Customers    domain.CustomerStore
	Slots        SlotChecker
	Calendar     domain.CalendarEvents
	Cache        domain.CacheStore
	Events       domain.EventPublisher
	Catalog      *CatalogService
	EmailEnabled bool
}

type BookingPolicy struct {
	HorizonDays int
	MaxActive   int
	Location    *time.Location
}

type BookingService struct {
	BookingDeps
	horizonDays int
	maxActive   int
	loc         *time.Location
	now         func() time.Time
	logger      *zerolog.Logger
}

func NewBookingService(deps BookingDeps, policy BookingPolicy, logger *zerolog.Logger) *BookingService {
	if policy.MaxActive <= 0 {
		policy.MaxActive = models.DefaultMaxActiveBookings
	}
	if policy.HorizonDays < 0 {
		policy.HorizonDays = models.DefaultBookingHorizonDays
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &BookingService{
		BookingDeps: deps,
		horizonDays: policy.HorizonDays,
		maxActive:   policy.MaxActive,
		loc:         policy.Location,
		now:         time.Now,
		logger:      logger,
	}
}

// Book runs the booking guard and persists the appointment. Checks run in a
// fixed order and the first failure is returned as a *domain.Error.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	res, err := s.book(ctx, req)
	if err != nil {
		metrics.IncBooking(bookingResultLabel(err))
		return nil, err
	}
	metrics.IncBooking("created")
	return res, nil
}

func (s *BookingService) book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Service = strings.TrimSpace(req.Service)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	required := []struct{ field, value string }{
		{"name", req.Name}, {"phone", req.Phone}, {"email", req.Email},
		{"service", req.Service}, {"date", req.Date}, {"time", req.Time},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, domain.ErrMissingField.With(fmt.Errorf("missing %s", r.field))
		}
	}
	canonical, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, domain.ErrInvalidPhone.With(err)
	}
	day, err := availability.ParseDate(req.Date, s.loc)
	if err != nil {
		return nil, domain.ErrInvalidDate.With(err)
	}
	start, err := models.ClockOn(day, req.Time)
	if err != nil {
		return nil, domain.ErrInvalidTime.With(err)
	}

	now := s.now().In(s.loc)
	if err := s.checkHorizon(day, start, now); err != nil {
		return nil, err
	}

	svc, err := s.Catalog.Lookup(req.Service)
	if err != nil {
		return nil, err
	}

	onGrid, err := s.Slots.OnGrid(req.Date, req.Time, svc.Duration())
	if err != nil {
		return nil, domain.ErrBookingFailed.With(err)
	}
	if !onGrid {
		return nil, domain.ErrOffGrid
	}

	customer, err := s.Customers.GetCustomerByPhone(ctx, canonical)
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		customer = nil
	case err != nil:
		return nil, domain.ErrBookingFailed.With(err)
	}

	if err := s.checkCap(ctx, canonical, now); err != nil {
		return nil, err
	}

	free, err := s.Slots.SlotFree(ctx, req.Date, req.Time, svc.Duration())
	switch {
	case err != nil:
		s.logger.Warn().Err(err).
			Str("date", req.Date).
			Str("time", req.Time).
			Msg("live slot check failed, proceeding with booking")
		metrics.IncDegraded("calendar")
	case !free:
		return nil, domain.ErrSlotTaken
	}

	if customer == nil {
		customer, err = s.ensureCustomer(ctx, req.Name, canonical, req.Email)
		if err != nil {
			return nil, err
		}
	}

	appt := &models.Appointment{
		ServiceName:        svc.Name,
		ServiceDisplayName: svc.DisplayName,
		StartAt:            start,
		DurationMinutes:    svc.DurationMinutes,
		Status:             models.StatusActive,
		Notes:              strings.TrimSpace(req.Notes),
	}
	if err := s.Repo.Create(ctx, appt, customer); err != nil {
		return nil, domain.ErrBookingFailed.With(err)
	}

	s.mirrorToCalendar(ctx, appt)
	s.invalidate(ctx, canonical)

	res := &BookingResult{Appointment: appt, EventID: appt.ExternalEventID}
	if err := s.publish(events.EventAppointmentCreated, appt); err == nil {
		res.EmailQueued = s.EmailEnabled && appt.CustomerEmail != ""
	}

	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("event_id", appt.ExternalEventID).
		Str("phone", phone.Mask(canonical)).
		Str("service", svc.Name).
		Time("start_at", appt.StartAt).
		Msg("booking created")
	return res, nil
}

func (s *BookingService) checkHorizon(day, start, now time.Time) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if day.Before(today) || start.Before(now) {
		return domain.ErrPastDate
	}
	if s.horizonDays > 0 && day.After(today.AddDate(0, 0, s.horizonDays)) {
		return domain.ErrOutsideHorizon.WithMessage(
			fmt.Sprintf("ניתן להזמין תור עד %d יום קדימה בלבד.", s.horizonDays))
	}
	return nil
}

// checkCap rejects the booking when the phone already holds MaxActive future
// appointments. The count and the insert are not atomic.
func (s *BookingService) checkCap(ctx context.Context, canonical string, now time.Time) error {
	count, err := s.Repo.CountActiveFutureByPhone(ctx, canonical, now)
	if err != nil {
		return domain.ErrBookingFailed.With(err)
	}
	if count < s.maxActive {
		return nil
	}
	existing, err := s.Repo.ListActiveFutureByPhone(ctx, canonical, now)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list existing appointments for cap conflict")
	}
	return domain.ErrCapExceeded.
		WithMessage(fmt.Sprintf("כבר יש לך %d תורים עתידיים. ניתן להזמין תור חדש רק לאחר שאחד מהם יעבור או יבוטל.", count)).
		WithExisting(existing)
}

func (s *BookingService) ensureCustomer(ctx context.Context, name, canonical, email string) (*models.Customer, error) {
	c := &models.Customer{Name: name, Phone: canonical, Email: email}
	err := s.Customers.CreateCustomer(ctx, c)
	if errors.Is(err, domain.ErrCustomerExists) {
		existing, getErr := s.Customers.GetCustomerByPhone(ctx, canonical)
		if getErr != nil {
			return nil, domain.ErrCustomerFailed.With(getErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, domain.ErrCustomerFailed.With(err)
	}
	return c, nil
}

// mirrorToCalendar creates the external event for database-backed
// appointments. Failures leave the booking intact without an event id.
func (s *BookingService) mirrorToCalendar(ctx context.Context, appt *models.Appointment) {
	if s.Calendar == nil || appt.ExternalEventID != "" {
		return
	}
	eventID, err := s.Calendar.CreateEvent(ctx, appt)
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appt.ID).Msg("failed to create calendar event")
		metrics.IncDegraded("calendar")
		return
	}
	if err := s.Repo.AttachExternalEventID(ctx, appt.ID, eventID); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID).
			Str("event_id", eventID).
			Msg("failed to attach calendar event id")
		return
	}
	appt.ExternalEventID = eventID
}

// Cancel cancels the active appointment identified by ref, an appointment id
// or an external event id. Same-day cancellations are refused.
func (s *BookingService) Cancel(ctx context.Context, ref string) (*models.Appointment, error) {
	appt, err := s.cancel(ctx, ref)
	switch {
	case errors.Is(err, domain.ErrSameDayCancel):
		metrics.IncCancellation("same_day")
	case err != nil:
		metrics.IncCancellation(domain.KindOf(err).String())
	default:
		metrics.IncCancellation("cancelled")
	}
	return appt, err
}

func (s *BookingService) cancel(ctx context.Context, ref string) (*models.Appointment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrMissingRef
	}

	appt, err := s.Repo.GetByRef(ctx, ref)
	if errors.Is(err, domain.ErrAppointmentNotFound) {
		return nil, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, domain.ErrCancelFailed.With(err)
	}
	if appt.Status != models.StatusActive {
		return nil, domain.ErrInvalidTransition
	}

	now := s.now().In(s.loc)
	start := appt.StartAt.In(s.loc)
	if sameDay(start, now) {
		s.logger.Warn().
			Str("appointment_id", appt.ID).
			Str("date", start.Format(models.DateLayout)).
			Msg("same-day cancellation blocked")
		return nil, domain.ErrSameDayCancel
	}
	if start.Before(now) {
		return nil, domain.ErrInvalidTransition
	}

	if err := s.Repo.Cancel(ctx, appt.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, domain.ErrCancelFailed.With(err)
	}
	appt.Status = models.StatusCancelled

	if s.Calendar != nil && appt.ExternalEventID != "" {
		if err := s.Calendar.DeleteEvent(ctx, appt.ExternalEventID); err != nil {
			s.logger.Warn().Err(err).
				Str("appointment_id", appt.ID).
				Str("event_id", appt.ExternalEventID).
				Msg("failed to delete calendar event")
			metrics.IncDegraded("calendar")
		}
	}

	s.invalidate(ctx, appt.CustomerPhone)
	_ = s.publish(events.EventAppointmentCancelled, appt)

	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("phone", phone.Mask(appt.CustomerPhone)).
		Msg("appointment cancelled")
	return appt, nil
}

// MyAppointments lists the active future appointments of a phone, served from
// the short-lived cache when possible.
func (s *BookingService) MyAppointments(ctx context.Context, rawPhone string) ([]*models.Appointment, error) {
	canonical, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, domain.ErrInvalidPhone.With(err)
	}

	if s.Cache != nil {
		cached, ok, err := s.Cache.GetAppointments(ctx, canonical)
		if err != nil {
			s.logger.Warn().Err(err).Msg("appointment cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	appts, err := s.Repo.ListActiveFutureByPhone(ctx, canonical, s.now())
	if err != nil {
		return nil, domain.ErrTechnical.With(err)
	}
	if appts == nil {
		appts = []*models.Appointment{}
	}
	if s.Cache != nil {
		if err := s.Cache.SetAppointments(ctx, canonical, appts); err != nil {
			s.logger.Warn().Err(err).Msg("appointment cache write failed")
		}
	}
	return appts, nil
}

// AvailableSlots lists bookable slots on date for the named service. An empty
// or unknown service uses DefaultSlotDuration.
func (s *BookingService) AvailableSlots(ctx context.Context, date, serviceName string) (availability.Result, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return availability.Result{}, domain.ErrInvalidDate
	}
	duration := time.Duration(s.Catalog.DurationFor(serviceName)) * time.Minute
	res, err := s.Slots.Available(ctx, date, duration)
	if errors.Is(err, availability.ErrInvalidDate) {
		return availability.Result{}, domain.ErrInvalidDate.With(err)
	}
	if err != nil {
		return availability.Result{}, domain.ErrSlotsFailed.With(err)
	}
	if res.Slots == nil {
		res.Slots = []string{}
	}
	return res, nil
}

func (s *BookingService) invalidate(ctx context.Context, canonical string) {
	if s.Cache == nil || canonical == "" {
		return
	}
	if err := s.Cache.Invalidate(ctx, canonical); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate appointment cache")
	}
}

func (s *BookingService) publish(eventType string, appt *models.Appointment) error {
	if s.Events == nil {
		return errors.New("no event publisher")
	}
	payload := events.AppointmentPayload{
		Appointment: *appt,
		EventID:     appt.ExternalEventID,
		OccurredAt:  s.now(),
	}
	if err := s.Events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Str("appointment_id", appt.ID).Msg("failed to publish event")
		return err
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func bookingResultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrCapExceeded):
		return "cap_exceeded"
	case errors.Is(err, domain.ErrSlotTaken):
		return "slot_taken"
	}
	return domain.KindOf(err).String()
}
