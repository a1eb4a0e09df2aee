package service

import "errors"

var (
	ErrSlotTaken         = errors.New("time slot is already taken")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrAppointmentClosed = errors.New("appointment is already closed")
	ErrServiceNotFound   = errors.New("service not found")
	ErrRateLimited       = errors.New("too many requests")
)
