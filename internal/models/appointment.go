package models

import "time"

type Appointment struct {
	ID                 string    `json:"id"`
	CustomerID         string    `json:"customer_id"`
	CustomerName       string    `json:"customer_name"`
	CustomerPhone      string    `json:"customer_phone"`
	CustomerEmail      string    `json:"customer_email"`
	ServiceName        string    `json:"service_name"`
	ServiceDisplayName string    `json:"service_display_name"`
	StartAt            time.Time `json:"start_at"`
	DurationMinutes    int       `json:"duration_minutes"`
	Status             string    `json:"status"` // active, cancelled, completed
	ExternalEventID    string    `json:"external_event_id,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (a *Appointment) EndAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// ReminderRef is the claim key for reminders: the external event id when the
// appointment has one, the appointment id otherwise.
func (a *Appointment) ReminderRef() string {
	if a.ExternalEventID != "" {
		return a.ExternalEventID
	}
	return "appt:" + a.ID
}

// CanTransition reports whether status may move from -> to.
// Only active appointments move, and only to a terminal state.
func CanTransition(from, to string) bool {
	if from != StatusActive {
		return false
	}
	return to == StatusCancelled || to == StatusCompleted
}
