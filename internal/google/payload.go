package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"google.golang.org/api/calendar/v3"
	"gopkg.in/yaml.v3"
)

const payloadVersion = 1

// Payload is the structured booking record stored in an event description.
type Payload struct {
	Version            int    `yaml:"v"`
	AppointmentID      string `yaml:"appointment_id"`
	CustomerID         string `yaml:"customer_id,omitempty"`
	Name               string `yaml:"name"`
	Phone              string `yaml:"phone"`
	Email              string `yaml:"email,omitempty"`
	Service            string `yaml:"service"`
	ServiceDisplayName string `yaml:"service_display_name,omitempty"`
	DurationMinutes    int    `yaml:"duration_minutes"`
	Status             string `yaml:"status"`
	Notes              string `yaml:"notes,omitempty"`
}

type payloadDoc struct {
	Booking Payload `yaml:"booking"`
}

func EncodePayload(appt *models.Appointment) (string, error) {
	doc := payloadDoc{Booking: Payload{
		Version:            payloadVersion,
		AppointmentID:      appt.ID,
		CustomerID:         appt.CustomerID,
		Name:               appt.CustomerName,
		Phone:              appt.CustomerPhone,
		Email:              appt.CustomerEmail,
		Service:            appt.ServiceName,
		ServiceDisplayName: appt.ServiceDisplayName,
		DurationMinutes:    appt.DurationMinutes,
		Status:             appt.Status,
		Notes:              appt.Notes,
	}}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(out), nil
}

// DecodePayload parses an event description. Anything that is not a
// complete booking record yields domain.ErrMalformedPayload.
func DecodePayload(description string) (*Payload, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: empty description", domain.ErrMalformedPayload)
	}
	var doc payloadDoc
	if err := yaml.Unmarshal([]byte(description), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	p := doc.Booking
	switch {
	case p.Version != payloadVersion:
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrMalformedPayload, p.Version)
	case p.Name == "", p.Phone == "", p.Service == "":
		return nil, fmt.Errorf("%w: missing name, phone or service", domain.ErrMalformedPayload)
	}
	if p.Status == "" {
		p.Status = models.StatusActive
	}
	return &p, nil
}

// AppointmentFromEvent rebuilds an appointment from a calendar event.
// A deleted event is reported as cancelled.
func AppointmentFromEvent(ev *calendar.Event, loc *time.Location) (*models.Appointment, error) {
	p, err := DecodePayload(ev.Description)
	if err != nil {
		return nil, err
	}
	if ev.Start == nil || ev.Start.DateTime == "" {
		return nil, fmt.Errorf("%w: event %s has no start time", domain.ErrMalformedPayload, ev.Id)
	}
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return nil, fmt.Errorf("%w: event %s start: %v", domain.ErrMalformedPayload, ev.Id, err)
	}
	if loc != nil {
		start = start.In(loc)
	}

	duration := p.DurationMinutes
	if duration <= 0 && ev.End != nil && ev.End.DateTime != "" {
		if end, err := time.Parse(time.RFC3339, ev.End.DateTime); err == nil {
			duration = int(end.Sub(start) / time.Minute)
		}
	}

	status := p.Status
	if ev.Status == "cancelled" {
		status = models.StatusCancelled
	}
	id := p.AppointmentID
	if id == "" {
		id = ev.Id
	}

	appt := &models.Appointment{
		ID:                 id,
		CustomerID:         p.CustomerID,
		CustomerName:       p.Name,
		CustomerPhone:      p.Phone,
		CustomerEmail:      p.Email,
		ServiceName:        p.Service,
		ServiceDisplayName: p.ServiceDisplayName,
		StartAt:            start,
		DurationMinutes:    duration,
		Status:             status,
		ExternalEventID:    ev.Id,
		Notes:              p.Notes,
	}
	if ev.Created != "" {
		if t, err := time.Parse(time.RFC3339, ev.Created); err == nil {
			appt.CreatedAt = t
		}
	}
	if ev.Updated != "" {
		if t, err := time.Parse(time.RFC3339, ev.Updated); err == nil {
			appt.UpdatedAt = t
		}
	}
	return appt, nil
}
