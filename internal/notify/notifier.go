package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/metrics"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/phone"

	"github.com/rs/zerolog"
)

const (
	channelEmail    = "email"
	channelSMS      = "sms"
	channelTelegram = "telegram"
)

// Alerter delivers free-text alerts to the studio owner.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Notifier fans appointment events out to email, SMS and owner alerts.
// A channel error fails the call only when no attempted channel succeeded.
type Notifier struct {
	email  domain.EmailSender
	sms    domain.SMSSender
	owner  Alerter
	studio Studio
	loc    *time.Location
	logger *zerolog.Logger
}

func NewNotifier(email domain.EmailSender, sms domain.SMSSender, owner Alerter, studio Studio, loc *time.Location, logger *zerolog.Logger) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{email: email, sms: sms, owner: owner, studio: studio, loc: loc, logger: logger}
}

func (n *Notifier) BookingConfirmed(ctx context.Context, appt *models.Appointment) error {
	err := n.deliver(ctx, appt, emailConfirmation, confirmationSMS(appt, n.loc))
	n.alertOwner(ctx, ownerBookingAlert(appt, n.loc))
	return err
}

func (n *Notifier) BookingCancelled(ctx context.Context, appt *models.Appointment) error {
	err := n.deliver(ctx, appt, emailCancellation, cancellationSMS())
	n.alertOwner(ctx, ownerCancelAlert(appt, n.loc))
	return err
}

func (n *Notifier) Reminder(ctx context.Context, appt *models.Appointment, kind string) error {
	var ek emailKind
	switch kind {
	case models.ReminderDayBefore:
		ek = emailDayBefore
	case models.ReminderDayOf:
		ek = emailDayOf
	default:
		return fmt.Errorf("notify: unknown reminder kind %q", kind)
	}
	return n.deliver(ctx, appt, ek, reminderSMS(appt, kind, n.loc))
}

// OwnerAlert sends text to the owner. A disabled channel is not an error.
func (n *Notifier) OwnerAlert(ctx context.Context, text string) error {
	if n.owner == nil {
		metrics.IncNotification(channelTelegram, "skipped")
		return nil
	}
	err := n.owner.Alert(ctx, text)
	switch {
	case errors.Is(err, ErrDisabled):
		metrics.IncNotification(channelTelegram, "skipped")
		return nil
	case err != nil:
		metrics.IncNotification(channelTelegram, "failed")
		return err
	}
	metrics.IncNotification(channelTelegram, "ok")
	return nil
}

func (n *Notifier) alertOwner(ctx context.Context, text string) {
	if err := n.OwnerAlert(ctx, text); err != nil {
		n.logger.Warn().Err(err).Msg("owner alert failed")
	}
}

func (n *Notifier) deliver(ctx context.Context, appt *models.Appointment, ek emailKind, smsText string) error {
	var attempted, failed int
	var errs []error

	record := func(channel string, err error) {
		switch {
		case errors.Is(err, ErrDisabled):
			metrics.IncNotification(channel, "skipped")
		case err != nil:
			attempted++
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
			metrics.IncNotification(channel, "failed")
			n.logger.Warn().Err(err).
				Str("channel", channel).
				Str("appointment_id", appt.ID).
				Msg("notification failed")
		default:
			attempted++
			metrics.IncNotification(channel, "ok")
		}
	}

	if appt.CustomerEmail != "" && n.email != nil {
		subject, body, err := renderEmail(ek, n.studio, appt, n.loc)
		if err == nil {
			err = n.email.SendEmail(ctx, appt.CustomerEmail, subject, body)
		}
		record(channelEmail, err)
	} else {
		metrics.IncNotification(channelEmail, "skipped")
	}

	if appt.CustomerPhone != "" && n.sms != nil {
		record(channelSMS, n.sms.SendSMS(ctx, appt.CustomerPhone, smsText))
	} else {
		metrics.IncNotification(channelSMS, "skipped")
	}

	if attempted > 0 && failed == attempted {
		return fmt.Errorf("notify: all channels failed for %s: %w", phone.Mask(appt.CustomerPhone), errors.Join(errs...))
	}
	return nil
}
