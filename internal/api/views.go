package api

import (
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"
	"github.com/adirsaban8-oss/ADIRS/internal/notify"
)

type appointmentView struct {
	Service     string `json:"service"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	DayName     string `json:"day_name"`
	ISODate     string `json:"iso_date"`
	EventID     string `json:"event_id"`
	DateTimeRaw string `json:"datetime_raw"`
	Duration    int    `json:"duration"`
}

func (s *HTTPServer) appointmentView(a *models.Appointment) appointmentView {
	start := a.StartAt.In(s.Location)
	service := a.ServiceDisplayName
	if service == "" {
		service = a.ServiceName
	}
	ref := a.ExternalEventID
	if ref == "" {
		ref = a.ID
	}
	return appointmentView{
		Service:     service,
		Date:        start.Format(models.DisplayDateLayout),
		Time:        start.Format(models.TimeLayout),
		DayName:     notify.HebrewDay(start),
		ISODate:     start.Format(models.DateLayout),
		EventID:     ref,
		DateTimeRaw: start.Format(time.RFC3339),
		Duration:    a.DurationMinutes,
	}
}

func (s *HTTPServer) appointmentViews(appts []*models.Appointment) []appointmentView {
	out := make([]appointmentView, 0, len(appts))
	for _, a := range appts {
		out = append(out, s.appointmentView(a))
	}
	return out
}

type customerView struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	CreatedAt          string `json:"created_at,omitempty"`
	CreatedAtFormatted string `json:"created_at_formatted,omitempty"`
}

func (s *HTTPServer) customerView(c *models.Customer, withID bool) customerView {
	v := customerView{Name: c.Name, Phone: c.Phone, Email: c.Email}
	if withID {
		v.ID = c.ID
		if !c.CreatedAt.IsZero() {
			created := c.CreatedAt.In(s.Location)
			v.CreatedAt = created.Format(time.RFC3339)
			v.CreatedAtFormatted = created.Format(models.DisplayDateLayout)
		}
	}
	return v
}
