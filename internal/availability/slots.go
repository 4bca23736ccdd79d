// Package availability computes bookable slots from business hours, busy
// intervals and admin-blocked times.
package availability

import (
	"errors"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"
)

var ErrInvalidDate = errors.New("availability: invalid date")

// ParseDate parses a YYYY-MM-DD date as local midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// GenerateSlots returns the "HH:MM" slot starts over [open, close) for date.
// closed is true when the weekday has no business hours.
func GenerateSlots(date string, hours models.BusinessHours, step time.Duration) (slots []string, closed bool, err error) {
	day, err := ParseDate(date, time.UTC)
	if err != nil {
		return nil, false, err
	}
	if step <= 0 {
		step = models.DefaultSlotStepMinutes * time.Minute
	}

	h, ok := hours.For(day.Weekday())
	if !ok {
		return []string{}, true, nil
	}
	open, closeAt, err := h.Bounds(day)
	if err != nil {
		return nil, false, err
	}

	for t := open; t.Before(closeAt); t = t.Add(step) {
		slots = append(slots, t.Format(models.TimeLayout))
	}
	return slots, false, nil
}

// Closing returns the local closing time of day, or false when the studio is closed.
func Closing(day time.Time, hours models.BusinessHours) (time.Time, bool) {
	h, ok := hours.For(day.Weekday())
	if !ok {
		return time.Time{}, false
	}
	_, closeAt, err := h.Bounds(day)
	if err != nil {
		return time.Time{}, false
	}
	return closeAt, true
}

// FitBeforeClose keeps the slots where a service of duration ends no later than closeAt.
func FitBeforeClose(day time.Time, slots []string, duration time.Duration, closeAt time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		start, err := models.ClockOn(day, s)
		if err != nil {
			continue
		}
		if !start.Add(duration).After(closeAt) {
			out = append(out, s)
		}
	}
	return out
}

// FilterAvailable keeps the slots whose [start, start+duration) overlaps no busy interval.
// day must be local midnight of the slots' date.
func FilterAvailable(day time.Time, slots []string, duration time.Duration, busy []models.BusyInterval) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		start, err := models.ClockOn(day, s)
		if err != nil {
			continue
		}
		if Free(start, duration, busy) {
			out = append(out, s)
		}
	}
	return out
}

// Free reports whether [start, start+duration) overlaps none of busy.
func Free(start time.Time, duration time.Duration, busy []models.BusyInterval) bool {
	end := start.Add(duration)
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return false
		}
	}
	return true
}

// RemoveBlocked drops every slot listed in blocked.
func RemoveBlocked(slots, blocked []string) []string {
	if len(blocked) == 0 {
		return slots
	}
	skip := make(map[string]struct{}, len(blocked))
	for _, b := range blocked {
		skip[b] = struct{}{}
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if _, ok := skip[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
