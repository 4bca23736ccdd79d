package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusyInterval_Overlaps(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	busy := BusyInterval{Start: at(10, 0), End: at(11, 0)}

	assert.False(t, busy.Overlaps(at(9, 30), at(10, 0)), "ends at busy start")
	assert.False(t, busy.Overlaps(at(11, 0), at(11, 30)), "starts at busy end")
	assert.True(t, busy.Overlaps(at(10, 30), at(11, 30)))
	assert.True(t, busy.Overlaps(at(9, 0), at(12, 0)))
	assert.True(t, busy.Overlaps(at(10, 15), at(10, 45)))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusActive, StatusCancelled))
	assert.True(t, CanTransition(StatusActive, StatusCompleted))
	assert.False(t, CanTransition(StatusActive, StatusActive))
	assert.False(t, CanTransition(StatusCancelled, StatusActive))
	assert.False(t, CanTransition(StatusCancelled, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
}

func TestAppointment_ReminderRef(t *testing.T) {
	a := &Appointment{ID: "abc"}
	assert.Equal(t, "appt:abc", a.ReminderRef())
	a.ExternalEventID = "evt1"
	assert.Equal(t, "evt1", a.ReminderRef())
}

func TestBusinessHours(t *testing.T) {
	hours := DefaultBusinessHours()

	_, open := hours.For(time.Friday)
	assert.False(t, open)
	_, open = hours.For(time.Saturday)
	assert.False(t, open)

	h, open := hours.For(time.Sunday)
	require.True(t, open)

	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	start, end, err := h.Bounds(day)
	require.NoError(t, err)
	assert.Equal(t, 9, start.Hour())
	assert.Equal(t, 20, end.Hour())
	assert.Equal(t, loc, start.Location())
}

func TestOTPCode_InCooldown(t *testing.T) {
	now := time.Now()
	code := &OTPCode{}
	assert.False(t, code.InCooldown(now))
	code.CooldownUntil = now.Add(time.Minute)
	assert.True(t, code.InCooldown(now))
	code.CooldownUntil = now.Add(-time.Minute)
	assert.False(t, code.InCooldown(now))
}

func TestDefaultServices(t *testing.T) {
	services := DefaultServices()
	require.Len(t, services, 8)
	seen := map[string]bool{}
	for _, s := range services {
		assert.False(t, seen[s.Name], s.Name)
		seen[s.Name] = true
		assert.Positive(t, s.DurationMinutes)
	}
	assert.Equal(t, 60*time.Minute, services[0].Duration())
}
