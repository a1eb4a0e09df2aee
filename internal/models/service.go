package models

import "time"

// Service is an entry of the salon catalog.
type Service struct {
	ID          string    `json:"id,omitempty" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Price       float64   `json:"price" yaml:"price"`
	Duration    int       `json:"duration" yaml:"duration"` // минуты
	Image       string    `json:"image,omitempty" yaml:"image"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
}

func (s *Service) SetID(id string) { s.ID = id }

// DurationOrDefault returns the service duration in minutes.
func (s *Service) DurationOrDefault() int {
	if s.Duration <= 0 {
		return DefaultServiceDuration
	}
	return s.Duration
}
