package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func setupMockCalendar(t *testing.T) (*http.ServeMux, *CalendarService) {
	t.Helper()
	ctx := context.Background()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := calendar.NewService(ctx, option.WithEndpoint(server.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	loc, err := time.LoadLocation(models.DefaultTimezone)
	require.NoError(t, err)
	return mux, newCalendarService(srv, "cal-1", loc, 5*time.Second, nil)
}

func writeGoogleError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": http.StatusText(code)},
	})
}

func TestCalendarService_TestConnection(t *testing.T) {
	mux, s := setupMockCalendar(t)
	mux.HandleFunc("/calendars/cal-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(calendar.Calendar{Id: "cal-1"})
	})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestCalendarService_TestConnectionForbidden(t *testing.T) {
	mux, s := setupMockCalendar(t)
	mux.HandleFunc("/calendars/cal-1", func(w http.ResponseWriter, r *http.Request) {
		writeGoogleError(w, http.StatusForbidden)
	})
	err := s.TestConnection(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCalendarService_ForbiddenLogsServiceAccount(t *testing.T) {
	mux, s := setupMockCalendar(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s.logger = &logger
	s.serviceAccount = "booking@studio.iam.gserviceaccount.com"
	mux.HandleFunc("/calendars/cal-1/events", func(w http.ResponseWriter, r *http.Request) {
		writeGoogleError(w, http.StatusForbidden)
	})

	_, err := s.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, buf.String(), `"service_account":"booking@studio.iam.gserviceaccount.com"`)
	assert.Contains(t, buf.String(), `"calendar_id":"cal-1"`)
}

func TestCalendarService_BusyIntervals(t *testing.T) {
	mux, s := setupMockCalendar(t)
	var gotQuery map[string][]string
	mux.HandleFunc("/calendars/cal-1/events", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(calendar.Events{Items: []*calendar.Event{
			{
				Id:    "timed",
				Start: &calendar.EventDateTime{DateTime: "2026-03-01T10:00:00+02:00"},
				End:   &calendar.EventDateTime{DateTime: "2026-03-01T11:00:00+02:00"},
			},
			{
				Id:    "all-day",
				Start: &calendar.EventDateTime{Date: "2026-03-01"},
				End:   &calendar.EventDateTime{Date: "2026-03-02"},
			},
			{
				Id:     "gone",
				Status: "cancelled",
				Start:  &calendar.EventDateTime{DateTime: "2026-03-01T12:00:00+02:00"},
				End:    &calendar.EventDateTime{DateTime: "2026-03-01T13:00:00+02:00"},
			},
			{
				Id:          "legacy-free-text",
				Description: "לק ג'ל\n\nDana\n0501234567",
				Start:       &calendar.EventDateTime{DateTime: "2026-03-01T15:00:00+02:00"},
				End:         &calendar.EventDateTime{DateTime: "2026-03-01T16:00:00+02:00"},
			},
		}})
	})

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, s.loc)
	busy, err := s.BusyIntervals(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, 10, busy[0].Start.Hour())
	assert.Equal(t, 11, busy[0].End.Hour())
	assert.Equal(t, 15, busy[1].Start.Hour())

	assert.Equal(t, []string{"true"}, gotQuery["singleEvents"])
	assert.Equal(t, []string{"2026-03-01T00:00:00+02:00"}, gotQuery["timeMin"])
	assert.Equal(t, []string{"2026-03-02T00:00:00+02:00"}, gotQuery["timeMax"])
}

func TestCalendarService_BusyIntervalsError(t *testing.T) {
	mux, s := setupMockCalendar(t)
	mux.HandleFunc("/calendars/cal-1/events", func(w http.ResponseWriter, r *http.Request) {
		writeGoogleError(w, http.StatusInternalServerError)
	})

	busy, err := s.BusyIntervals(context.Background(), time.Now())
	assert.Error(t, err)
	assert.Nil(t, busy)
}

func TestCalendarService_CreateEvent(t *testing.T) {
	mux, s := setupMockCalendar(t)
	var got calendar.Event
	mux.HandleFunc("/calendars/cal-1/events", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(calendar.Event{Id: "ev-123"})
	})

	appt := &models.Appointment{
		ID:                 "appt-1",
		CustomerName:       "Dana",
		CustomerPhone:      "+972501234567",
		ServiceName:        "Gel Polish",
		ServiceDisplayName: "לק ג'ל",
		StartAt:            time.Date(2026, 3, 1, 10, 0, 0, 0, s.loc),
		DurationMinutes:    60,
		Status:             models.StatusActive,
	}
	id, err := s.CreateEvent(context.Background(), appt)
	require.NoError(t, err)
	assert.Equal(t, "ev-123", id)

	assert.Equal(t, "Dana - לק ג'ל", got.Summary)
	assert.Equal(t, "2026-03-01T10:00:00+02:00", got.Start.DateTime)
	assert.Equal(t, "2026-03-01T11:00:00+02:00", got.End.DateTime)
	assert.Equal(t, models.DefaultTimezone, got.Start.TimeZone)
	assert.Equal(t, "appt-1", got.ExtendedProperties.Private[privateIDKey])
	require.NotNil(t, got.Reminders)
	assert.Len(t, got.Reminders.Overrides, 2)

	p, err := DecodePayload(got.Description)
	require.NoError(t, err)
	assert.Equal(t, "+972501234567", p.Phone)
}

func TestCalendarService_GetEventNotFound(t *testing.T) {
	mux, s := setupMockCalendar(t)
	mux.HandleFunc("/calendars/cal-1/events/missing", func(w http.ResponseWriter, r *http.Request) {
		writeGoogleError(w, http.StatusNotFound)
	})
	_, err := s.GetEvent(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrEventNotFound))
}

func TestCalendarService_DeleteEvent(t *testing.T) {
	mux, s := setupMockCalendar(t)
	mux.HandleFunc("/calendars/cal-1/events/ev-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/calendars/cal-1/events/ev-gone", func(w http.ResponseWriter, r *http.Request) {
		writeGoogleError(w, http.StatusGone)
	})
	mux.HandleFunc("/calendars/cal-1/events/ev-broken", func(w http.ResponseWriter, r *http.Request) {
		writeGoogleError(w, http.StatusInternalServerError)
	})

	ctx := context.Background()
	assert.NoError(t, s.DeleteEvent(ctx, "ev-1"))
	assert.NoError(t, s.DeleteEvent(ctx, "ev-gone"))
	assert.Error(t, s.DeleteEvent(ctx, "ev-broken"))
}

func TestCalendarService_FindByAppointmentID(t *testing.T) {
	mux, s := setupMockCalendar(t)
	mux.HandleFunc("/calendars/cal-1/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("privateExtendedProperty") == "appointment_id=appt-9" {
			_ = json.NewEncoder(w).Encode(calendar.Events{Items: []*calendar.Event{{Id: "ev-9"}}})
			return
		}
		_ = json.NewEncoder(w).Encode(calendar.Events{})
	})

	ev, err := s.FindByAppointmentID(context.Background(), "appt-9")
	require.NoError(t, err)
	assert.Equal(t, "ev-9", ev.Id)

	_, err = s.FindByAppointmentID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestServiceAccountEmail(t *testing.T) {
	email, err := ServiceAccountEmail([]byte(`{"client_email":"booking@studio.iam.gserviceaccount.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "booking@studio.iam.gserviceaccount.com", email)

	_, err = ServiceAccountEmail([]byte("not json"))
	assert.Error(t, err)
}
