// Package reminder sends day-before and day-of appointment reminders at most
// once per appointment and kind.
package reminder

import (
	"context"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/metrics"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/phone"

	"github.com/rs/zerolog"
)

// Candidates lists the active appointments starting in [from, to).
type Candidates interface {
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Appointment, error)
}

// Sender delivers a single reminder.
type Sender interface {
	Reminder(ctx context.Context, appt *models.Appointment, kind string) error
}

type Config struct {
	EveningHour int
	MorningHour int
	// StaleAfter is how old a pending claim must be before another run may take it over.
	StaleAfter time.Duration
	Location   *time.Location
}

// Report summarizes one dispatcher run.
type Report struct {
	Kind       string
	Date       string
	Candidates int
	Sent       int
	Failed     int
	Skipped    int
	// LockBusy is set when another worker held the run lock.
	LockBusy bool
}

type Dispatcher struct {
	source  Candidates
	claims  domain.ClaimStore
	locker  domain.RunLocker
	sender  Sender
	cfg     Config
	now     func() time.Time
	logger  *zerolog.Logger
	timeout time.Duration
}

func NewDispatcher(
	source Candidates,
	claims domain.ClaimStore,
	locker domain.RunLocker,
	sender Sender,
	cfg Config,
	logger *zerolog.Logger,
) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = models.DefaultStaleClaimMinutes * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		source:  source,
		claims:  claims,
		locker:  locker,
		sender:  sender,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Plan maps the current studio hour to a reminder kind and the day whose
// appointments it covers. ok is false outside the two reminder hours.
func (d *Dispatcher) Plan(now time.Time) (kind string, day time.Time, ok bool) {
	now = now.In(d.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.cfg.Location)
	switch now.Hour() {
	case d.cfg.EveningHour:
		return models.ReminderDayBefore, today.AddDate(0, 0, 1), true
	case d.cfg.MorningHour:
		return models.ReminderDayOf, today, true
	}
	return "", time.Time{}, false
}

// Run dispatches the reminders due at the current hour. Outside the reminder
// hours it does nothing. Per-item failures are recorded on the claim and do
// not fail the run; failing to list candidates or take the lock does.
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	now := d.now().In(d.cfg.Location)
	kind, day, ok := d.Plan(now)
	if !ok {
		return Report{}, nil
	}
	return d.RunKind(ctx, kind, day)
}

// RunKind dispatches reminders of kind for appointments on day regardless of
// the current hour.
func (d *Dispatcher) RunKind(ctx context.Context, kind string, day time.Time) (Report, error) {
	now := d.now().In(d.cfg.Location)
	day = day.In(d.cfg.Location)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, d.cfg.Location)
	rep := Report{Kind: kind, Date: from.Format(models.DateLayout)}

	log := d.logger.With().Str("kind", kind).Str("date", rep.Date).Logger()

	candidates, err := d.source.ListActiveBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		log.Error().Err(err).Msg("reminder run aborted: cannot list appointments")
		return rep, err
	}

	release, locked, err := d.locker.TryLock(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reminder run aborted: lock error")
		return rep, err
	}
	if !locked {
		log.Info().Msg("reminder run skipped: another worker holds the lock")
		rep.LockBusy = true
		return rep, nil
	}
	defer release()

	for _, appt := range candidates {
		if !appt.StartAt.After(now) {
			continue
		}
		rep.Candidates++
		result := d.dispatch(ctx, appt, kind, now, &log)
		metrics.IncReminder(kind, result)
		switch result {
		case "sent":
			rep.Sent++
		case "failed":
			rep.Failed++
		default:
			rep.Skipped++
		}
	}

	log.Info().
		Int("candidates", rep.Candidates).
		Int("sent", rep.Sent).
		Int("failed", rep.Failed).
		Int("skipped", rep.Skipped).
		Msg("reminder run finished")
	return rep, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, appt *models.Appointment, kind string, now time.Time, log *zerolog.Logger) string {
	ref := appt.ReminderRef()
	owned, err := d.claims.Claim(ctx, ref, kind, now, now.Add(-d.cfg.StaleAfter))
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Msg("reminder claim failed")
		return "failed"
	}
	if !owned {
		log.Debug().Str("ref", ref).Msg("reminder already claimed")
		return "skipped"
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.sender.Reminder(sendCtx, appt, kind); err != nil {
		log.Warn().Err(err).
			Str("ref", ref).
			Str("phone", phone.Mask(appt.CustomerPhone)).
			Msg("reminder send failed")
		if markErr := d.claims.MarkFailed(ctx, ref, kind, truncate(err.Error(), models.MaxClaimErrorLength)); markErr != nil {
			log.Error().Err(markErr).Str("ref", ref).Msg("failed to mark reminder claim failed")
		}
		return "failed"
	}

	if err := d.claims.MarkSent(ctx, ref, kind); err != nil {
		log.Error().Err(err).Str("ref", ref).Msg("failed to mark reminder claim sent")
	}
	return "sent"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
