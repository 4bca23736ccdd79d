package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/config"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// privateIDKey is the private extended property holding the appointment id.
const privateIDKey = "appointment_id"

var (
	ErrEventNotFound    = errors.New("calendar event not found")
	ErrPermissionDenied = errors.New("calendar access denied")
)

// CalendarService wraps a single Google calendar used as the studio diary.
type CalendarService struct {
	service    *calendar.Service
	calendarID string
	// serviceAccount is the client_email the calendar must be shared with.
	serviceAccount string
	loc            *time.Location
	timeout        time.Duration
	logger         *zerolog.Logger
}

// NewCalendarService authenticates with a service account and binds to calendarID.
func NewCalendarService(ctx context.Context, cfg config.GoogleConfig, loc *time.Location, logger *zerolog.Logger) (*CalendarService, error) {
	credentialsJSON, err := readCredentials(cfg)
	if err != nil {
		return nil, err
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	s := newCalendarService(srv, cfg.CalendarID, loc, cfg.RequestTimeout, logger)
	if email, err := ServiceAccountEmail(credentialsJSON); err == nil {
		s.serviceAccount = email
	}
	return s, nil
}

func newCalendarService(srv *calendar.Service, calendarID string, loc *time.Location, timeout time.Duration, logger *zerolog.Logger) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CalendarService{service: srv, calendarID: calendarID, loc: loc, timeout: timeout, logger: logger}
}

func readCredentials(cfg config.GoogleConfig) ([]byte, error) {
	if cfg.CredentialsJSON != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	return data, nil
}

// ServiceAccountEmail extracts client_email from service account credentials.
// The calendar must be shared with this address.
func ServiceAccountEmail(credentialsJSON []byte) (string, error) {
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(credentialsJSON, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

func (s *CalendarService) CalendarID() string { return s.calendarID }

// TestConnection reads the calendar metadata.
func (s *CalendarService) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.service.Calendars.Get(s.calendarID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", s.classify(err))
	}
	return nil
}

// ListEvents returns the single (expanded) events overlapping [from, to), ordered by start.
func (s *CalendarService) ListEvents(ctx context.Context, from, to time.Time) ([]*calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var events []*calendar.Event
	err := s.service.Events.List(s.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Pages(ctx, func(page *calendar.Events) error {
			events = append(events, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", s.classify(err))
	}
	return events, nil
}

// FindByAppointmentID looks an event up by the private appointment id property.
func (s *CalendarService) FindByAppointmentID(ctx context.Context, appointmentID string) (*calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.service.Events.List(s.calendarID).
		PrivateExtendedProperty(privateIDKey + "=" + appointmentID).
		ShowDeleted(true).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("find event: %w", s.classify(err))
	}
	if len(res.Items) == 0 {
		return nil, ErrEventNotFound
	}
	return res.Items[0], nil
}

// BusyIntervals returns the timed, non-cancelled events overlapping the local day.
// All-day events do not block slots.
func (s *CalendarService) BusyIntervals(ctx context.Context, day time.Time) ([]models.BusyInterval, error) {
	day = day.In(s.loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	events, err := s.ListEvents(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	busy := make([]models.BusyInterval, 0, len(events))
	for _, ev := range events {
		if ev.Status == "cancelled" || ev.Start == nil || ev.End == nil || ev.Start.DateTime == "" {
			continue
		}
		from, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			s.logger.Warn().Err(err).Str("event_id", ev.Id).Msg("skip event with unparseable start")
			continue
		}
		to, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			s.logger.Warn().Err(err).Str("event_id", ev.Id).Msg("skip event with unparseable end")
			continue
		}
		busy = append(busy, models.BusyInterval{Start: from.In(s.loc), End: to.In(s.loc)})
	}
	return busy, nil
}

// CreateEvent writes the appointment as a timed event and returns its id.
func (s *CalendarService) CreateEvent(ctx context.Context, appt *models.Appointment) (string, error) {
	ev, err := s.eventFor(appt)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	created, err := s.service.Events.Insert(s.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", s.classify(err))
	}
	return created.Id, nil
}

// GetEvent returns the event, including cancelled ones.
func (s *CalendarService) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ev, err := s.service.Events.Get(s.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, s.classify(err))
	}
	return ev, nil
}

// DeleteEvent removes the event. Deleting an already removed event is not an error.
func (s *CalendarService) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.service.Events.Delete(s.calendarID, eventID).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusGone {
		return nil
	}
	return fmt.Errorf("delete event %s: %w", eventID, s.classify(err))
}

// UpdatePayload rewrites the event description with appt's current state.
func (s *CalendarService) UpdatePayload(ctx context.Context, eventID string, appt *models.Appointment) error {
	desc, err := EncodePayload(appt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.service.Events.Patch(s.calendarID, eventID, &calendar.Event{Description: desc}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("patch event %s: %w", eventID, s.classify(err))
	}
	return nil
}

func (s *CalendarService) eventFor(appt *models.Appointment) (*calendar.Event, error) {
	desc, err := EncodePayload(appt)
	if err != nil {
		return nil, err
	}
	start := appt.StartAt.In(s.loc)
	end := appt.EndAt().In(s.loc)

	return &calendar.Event{
		Summary:     fmt.Sprintf("%s - %s", appt.CustomerName, serviceLabel(appt)),
		Description: desc,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: s.loc.String()},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: s.loc.String()},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: 60},
				{Method: "popup", Minutes: 1440},
			},
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{privateIDKey: appt.ID},
		},
	}, nil
}

func serviceLabel(appt *models.Appointment) string {
	if appt.ServiceDisplayName != "" {
		return appt.ServiceDisplayName
	}
	return appt.ServiceName
}

func (s *CalendarService) classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch gerr.Code {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: %v", ErrEventNotFound, err)
	case http.StatusForbidden:
		s.logger.Error().
			Str("calendar_id", s.calendarID).
			Str("service_account", s.serviceAccount).
			Msg("calendar access denied: share the calendar with the service account email and grant 'Make changes to events'")
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
