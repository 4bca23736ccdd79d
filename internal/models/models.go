package models

import "time"

// BusyInterval is an occupied half-open range [Start, End).
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether [start, end) intersects the interval.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// ReminderClaim records ownership of a single reminder send.
type ReminderClaim struct {
	EventRef     string    `json:"external_event_id"`
	Kind         string    `json:"reminder_kind"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type OTPCode struct {
	ID            string
	Phone         string
	Code          string
	ExpiresAt     time.Time
	Attempts      int
	CooldownUntil time.Time
	CreatedAt     time.Time
}

// InCooldown reports whether the code blocks new requests at now.
func (o *OTPCode) InCooldown(now time.Time) bool {
	return !o.CooldownUntil.IsZero() && o.CooldownUntil.After(now)
}
