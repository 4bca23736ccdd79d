package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/metrics"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/rs/zerolog"
)

// Result is the outcome of an availability query.
// Degraded is set when busy intervals could not be fetched and every slot was kept.
type Result struct {
	Slots    []string
	Closed   bool
	Degraded bool
}

type Checker struct {
	busy    domain.BusyIntervalSource
	blocked domain.BlockedSlotSource
	hours   models.BusinessHours
	step    time.Duration
	loc     *time.Location
	logger  *zerolog.Logger
}

func NewChecker(
	busy domain.BusyIntervalSource,
	blocked domain.BlockedSlotSource,
	hours models.BusinessHours,
	step time.Duration,
	loc *time.Location,
	logger *zerolog.Logger,
) *Checker {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Checker{busy: busy, blocked: blocked, hours: hours, step: step, loc: loc, logger: logger}
}

func (c *Checker) Location() *time.Location { return c.loc }

// Slots returns the raw business-hours grid for date.
func (c *Checker) Slots(date string) ([]string, bool, error) {
	return GenerateSlots(date, c.hours, c.step)
}

// Available lists the bookable slots on date for a service of the given duration.
// A busy-source failure keeps every slot; blocked times are always removed.
func (c *Checker) Available(ctx context.Context, date string, duration time.Duration) (Result, error) {
	day, err := ParseDate(date, c.loc)
	if err != nil {
		return Result{}, err
	}
	slots, closed, err := c.Slots(date)
	if err != nil {
		return Result{}, err
	}
	if closed {
		return Result{Slots: []string{}, Closed: true}, nil
	}

	if closeAt, ok := Closing(day, c.hours); ok {
		slots = FitBeforeClose(day, slots, duration, closeAt)
	}

	res := Result{Slots: slots}
	busy, err := c.busyIntervals(ctx, day)
	if err != nil {
		c.logger.Warn().Err(err).Str("date", date).Msg("busy intervals unavailable, returning all slots")
		metrics.IncDegraded("calendar")
		res.Degraded = true
	} else {
		res.Slots = FilterAvailable(day, slots, duration, busy)
	}

	blocked, err := c.blockedTimes(ctx, date)
	if err != nil {
		return Result{}, fmt.Errorf("blocked slots: %w", err)
	}
	res.Slots = RemoveBlocked(res.Slots, blocked)
	return res, nil
}

// SlotFree is the live re-check for one slot. A blocked slot is never free.
// Errors from the busy source are returned so the caller decides how to degrade.
func (c *Checker) SlotFree(ctx context.Context, date, clock string, duration time.Duration) (bool, error) {
	day, err := ParseDate(date, c.loc)
	if err != nil {
		return false, err
	}
	start, err := models.ClockOn(day, clock)
	if err != nil {
		return false, fmt.Errorf("parse time %q: %w", clock, err)
	}

	blocked, err := c.blockedTimes(ctx, date)
	if err != nil {
		return false, fmt.Errorf("blocked slots: %w", err)
	}
	if contains(blocked, clock) {
		return false, nil
	}

	busy, err := c.busyIntervals(ctx, day)
	if err != nil {
		return false, err
	}
	return Free(start, duration, busy), nil
}

// OnGrid reports whether clock is a business-hours slot of date and a service
// of duration starting there ends by closing time.
func (c *Checker) OnGrid(date, clock string, duration time.Duration) (bool, error) {
	day, err := ParseDate(date, c.loc)
	if err != nil {
		return false, err
	}
	slots, closed, err := c.Slots(date)
	if err != nil {
		return false, err
	}
	if closed {
		return false, nil
	}
	if closeAt, ok := Closing(day, c.hours); ok {
		slots = FitBeforeClose(day, slots, duration, closeAt)
	}
	return contains(slots, clock), nil
}

func (c *Checker) busyIntervals(ctx context.Context, day time.Time) ([]models.BusyInterval, error) {
	if c.busy == nil {
		return nil, nil
	}
	return c.busy.BusyIntervals(ctx, day)
}

func (c *Checker) blockedTimes(ctx context.Context, date string) ([]string, error) {
	if c.blocked == nil {
		return nil, nil
	}
	return c.blocked.BlockedTimes(ctx, date)
}
