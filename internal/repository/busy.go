package repository

import (
	"context"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"
)

// AppointmentBusySource derives busy intervals from stored appointments.
// It is used when no calendar is configured.
type AppointmentBusySource struct {
	repo domain.AppointmentRepository
	loc  *time.Location
}

func NewAppointmentBusySource(repo domain.AppointmentRepository, loc *time.Location) *AppointmentBusySource {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentBusySource{repo: repo, loc: loc}
}

func (s *AppointmentBusySource) BusyIntervals(ctx context.Context, day time.Time) ([]models.BusyInterval, error) {
	day = day.In(s.loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	appts, err := s.repo.ListActiveBetween(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	busy := make([]models.BusyInterval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, models.BusyInterval{Start: a.StartAt.In(s.loc), End: a.EndAt().In(s.loc)})
	}
	return busy, nil
}
