package reminder

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper marks past active appointments completed.
type Sweeper interface {
	CompletePast(ctx context.Context, now time.Time) (int64, error)
}

// OTPPurger removes expired one-time codes.
type OTPPurger interface {
	PurgeExpiredOTP(ctx context.Context, now time.Time) (int64, error)
}

type SchedulerOptions struct {
	// Dispatcher is nil when reminders are disabled.
	Dispatcher *Dispatcher
	// Sweeper is nil when the completion sweep is disabled.
	Sweeper Sweeper
	OTP     OTPPurger
}

// Scheduler runs the hourly maintenance jobs at the top of every hour.
type Scheduler struct {
	opts   SchedulerOptions
	now    func() time.Time
	logger *zerolog.Logger
}

func NewScheduler(opts SchedulerOptions, logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{opts: opts, now: time.Now, logger: logger}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	timer := time.NewTimer(untilNextHour(s.now()))
	defer timer.Stop()
	s.logger.Info().Msg("hourly scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("hourly scheduler stopped")
			return
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(untilNextHour(s.now()))
		}
	}
}

// Tick runs every job once. Job failures are logged.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	if s.opts.Dispatcher != nil {
		if _, err := s.opts.Dispatcher.Run(ctx); err != nil {
			s.logger.Error().Err(err).Msg("reminder dispatch failed")
		}
	}

	if s.opts.Sweeper != nil {
		n, err := s.opts.Sweeper.CompletePast(ctx, now)
		switch {
		case err != nil:
			s.logger.Error().Err(err).Msg("completion sweep failed")
		case n > 0:
			s.logger.Info().Int64("completed", n).Msg("past appointments completed")
		}
	}

	if s.opts.OTP != nil {
		n, err := s.opts.OTP.PurgeExpiredOTP(ctx, now)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("otp purge failed")
		case n > 0:
			s.logger.Debug().Int64("purged", n).Msg("expired otp codes purged")
		}
	}
}

func untilNextHour(now time.Time) time.Duration {
	next := now.Truncate(time.Hour).Add(time.Hour)
	return next.Sub(now)
}
