package google

import (
	"testing"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
)

func TestAppointmentFromEvent(t *testing.T) {
	loc, _ := time.LoadLocation(models.DefaultTimezone)
	desc, err := EncodePayload(&models.Appointment{
		ID:              "appt-1",
		CustomerName:    "Noa: \"VIP\"",
		CustomerPhone:   "+972521112233",
		CustomerEmail:   "noa@example.com",
		ServiceName:     "Eyebrows",
		DurationMinutes: 20,
		Status:          models.StatusActive,
		Notes:           "line one\nline two",
	})
	require.NoError(t, err)

	ev := &calendar.Event{
		Id:          "ev-1",
		Description: desc,
		Start:       &calendar.EventDateTime{DateTime: "2026-03-01T09:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2026-03-01T09:20:00Z"},
	}
	appt, err := AppointmentFromEvent(ev, loc)
	require.NoError(t, err)

	assert.Equal(t, "appt-1", appt.ID)
	assert.Equal(t, "ev-1", appt.ExternalEventID)
	assert.Equal(t, "Noa: \"VIP\"", appt.CustomerName)
	assert.Equal(t, "line one\nline two", appt.Notes)
	assert.Equal(t, 11, appt.StartAt.Hour())
	assert.Equal(t, 20, appt.DurationMinutes)
	assert.Equal(t, models.StatusActive, appt.Status)

	ev.Status = "cancelled"
	appt, err = AppointmentFromEvent(ev, loc)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, appt.Status)
}

func TestDecodePayloadMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"free text":     "לק ג'ל\n\nDana\n0501234567\ndana@example.com",
		"wrong version": "booking:\n  v: 7\n  name: a\n  phone: b\n  service: c\n",
		"missing phone": "booking:\n  v: 1\n  name: a\n  service: c\n",
		"not yaml":      "booking: [unclosed",
	}
	for name, desc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePayload(desc)
			assert.ErrorIs(t, err, domain.ErrMalformedPayload)
		})
	}
}

func TestAppointmentFromEventWithoutStart(t *testing.T) {
	desc, err := EncodePayload(&models.Appointment{CustomerName: "a", CustomerPhone: "b", ServiceName: "c"})
	require.NoError(t, err)
	_, err = AppointmentFromEvent(&calendar.Event{Id: "x", Description: desc, Start: &calendar.EventDateTime{Date: "2026-03-01"}}, time.UTC)
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}
