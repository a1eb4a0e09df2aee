package models

import (
	"encoding/json"
	"time"
)

type Appointment struct {
	ID           string    `json:"id,omitempty"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	ServiceID    string    `json:"serviceId,omitempty"`
	ServiceName  string    `json:"serviceName"`
	ServicePrice float64   `json:"servicePrice"`
	Date         time.Time `json:"date"`
	TimeSlot     string    `json:"timeSlot"`
	Status       string    `json:"status"` // pending, completed, cancelled
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (a *Appointment) SetID(id string) { a.ID = id }

// UnmarshalJSON accepts documents written with the legacy status values.
func (a *Appointment) UnmarshalJSON(data []byte) error {
	type plain Appointment
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Appointment(p)
	a.Status = NormalizeStatus(a.Status)
	return nil
}

func (a *Appointment) IsCancelled() bool { return a.Status == StatusCancelled }

// IsFinal reports whether the appointment reached a terminal status.
func (a *Appointment) IsFinal() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled
}

// CanTransitionTo reports whether status may follow the current one.
// Only pending appointments move, and only to completed or cancelled.
func (a *Appointment) CanTransitionTo(status string) bool {
	if a.Status != StatusPending {
		return false
	}
	return status == StatusCompleted || status == StatusCancelled
}

// OnDay reports whether the appointment falls on the calendar day of day in loc.
func (a *Appointment) OnDay(day time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = day.Location()
	}
	return a.Date.In(loc).Format(DateLayout) == day.In(loc).Format(DateLayout)
}
