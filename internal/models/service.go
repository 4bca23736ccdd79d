package models

import (
	"fmt"
	"time"
)

// Service is a catalog entry. Name is the unique key.
type Service struct {
	Name            string  `yaml:"name" json:"name"`
	DisplayName     string  `yaml:"display_name" json:"name_he"`
	Price           float64 `yaml:"price" json:"price"`
	DurationMinutes int     `yaml:"duration_minutes" json:"duration"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// DayHours is an opening window in "HH:MM" local time, half-open [Open, Close).
type DayHours struct {
	Open  string `yaml:"open" json:"open"`
	Close string `yaml:"close" json:"close"`
}

// Bounds resolves the window on the given local day.
func (h DayHours) Bounds(day time.Time) (time.Time, time.Time, error) {
	open, err := ClockOn(day, h.Open)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("open: %w", err)
	}
	closeAt, err := ClockOn(day, h.Close)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("close: %w", err)
	}
	return open, closeAt, nil
}

// BusinessHours maps a weekday (0=Sunday..6=Saturday) to its opening window.
// A missing weekday is a closed day.
type BusinessHours map[time.Weekday]DayHours

// For returns the window for the weekday and whether the studio is open.
func (b BusinessHours) For(day time.Weekday) (DayHours, bool) {
	h, ok := b[day]
	if !ok || h.Open == "" || h.Close == "" {
		return DayHours{}, false
	}
	return h, true
}

// ClockOn places an "HH:MM" clock value on the calendar day of d, in d's location.
func ClockOn(d time.Time, clock string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, d.Location()), nil
}

// DefaultBusinessHours is Sunday to Thursday 09:00-20:00, closed Friday and Saturday.
func DefaultBusinessHours() BusinessHours {
	h := DayHours{Open: "09:00", Close: "20:00"}
	return BusinessHours{
		time.Sunday:    h,
		time.Monday:    h,
		time.Tuesday:   h,
		time.Wednesday: h,
		time.Thursday:  h,
	}
}

// DefaultServices is the studio catalog used when no services file is configured.
func DefaultServices() []Service {
	return []Service{
		{Name: "Gel Polish", DisplayName: "לק ג'ל", Price: 120, DurationMinutes: 60},
		{Name: "Anatomical Structure", DisplayName: "מבנה אנטומי", Price: 140, DurationMinutes: 75},
		{Name: "Gel Fill", DisplayName: "מילוי ג'ל", Price: 150, DurationMinutes: 60},
		{Name: "Single Nail Extension", DisplayName: "הארכת ציפורן בודדת", Price: 10, DurationMinutes: 10},
		{Name: "Building", DisplayName: "בנייה", Price: 300, DurationMinutes: 120},
		{Name: "Eyebrows", DisplayName: "גבות", Price: 50, DurationMinutes: 20},
		{Name: "Mustache", DisplayName: "שפם", Price: 15, DurationMinutes: 10},
		{Name: "Eyebrow Tinting", DisplayName: "צביעת גבות", Price: 30, DurationMinutes: 15},
	}
}
