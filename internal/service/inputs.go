package service

import (
	"strings"
	"time"

	"salon/internal/models"
	"salon/internal/validation"
)

// BookingRequest is the public booking form.
type BookingRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,max=40"`
	ServiceID string `json:"serviceId" validate:"required_without=Service"`
	Service   string `json:"service" validate:"required_without=ServiceID"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot  string `json:"timeSlot" validate:"required"`
	Notes     string `json:"notes" validate:"max=1000"`
}

// AppointmentUpdate is a dashboard edit; nil fields stay unchanged.
type AppointmentUpdate struct {
	Name      *string `json:"name" validate:"omitempty,max=120"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	ServiceID *string `json:"serviceId"`
	Date      *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	TimeSlot  *string `json:"timeSlot"`
	Notes     *string `json:"notes" validate:"omitempty,max=1000"`
}

type ServiceInput struct {
	Title       string  `json:"title" validate:"required,max=120"`
	Description string  `json:"description" validate:"max=2000"`
	Price       float64 `json:"price" validate:"gte=0"`
	Duration    int     `json:"duration" validate:"gte=1"`
	Image       string  `json:"image"`
}

type ClientInput struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"max=40"`
}

type TransactionInput struct {
	Description string  `json:"description" validate:"required,max=200"`
	Category    string  `json:"category" validate:"required,max=60"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Type        string  `json:"type" validate:"required"`
}

func parseDay(field, value string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, validation.Field(field, "must be a date formatted as "+models.DateLayout)
	}
	return day, nil
}

// atSlot places slot ("15:04") on the calendar day of day.
func atSlot(day time.Time, slot string) (time.Time, error) {
	t, err := time.Parse(models.SlotLayout, slot)
	if err != nil {
		return time.Time{}, validation.Field("timeSlot", "must be formatted as HH:MM")
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func trimmed(s string) string { return strings.TrimSpace(s) }
