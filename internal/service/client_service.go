package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salon/internal/docstore"
	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/models"
	"salon/internal/repository"
	"salon/internal/validation"

	"github.com/rs/zerolog"
)

type ClientService struct {
	clients      *repository.Collection[models.Client, *models.Client]
	appointments *repository.Collection[models.Appointment, *models.Appointment]
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewClientService(store domain.DocumentStore, logger *zerolog.Logger) *ClientService {
	return &ClientService{
		clients:      repository.NewCollection[models.Client](store, models.CollectionClients),
		appointments: repository.NewCollection[models.Appointment](store, models.CollectionAppointments),
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ClientService) List(ctx context.Context) ([]*models.Client, error) {
	return s.clients.Find(ctx, docstore.NewQuery().OrderBy("name", false))
}

func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	return s.clients.Get(ctx, id)
}

// Search filters clients by a case-insensitive substring of name or email.
func (s *ClientService) Search(ctx context.Context, query string) ([]*models.Client, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Client, 0, len(all))
	for _, c := range all {
		if c.Matches(query) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Create stores a new client. Duplicates by name or email are accepted.
func (s *ClientService) Create(ctx context.Context, in ClientInput) (*models.Client, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	c := &models.Client{
		Name:      trimmed(in.Name),
		Email:     trimmed(in.Email),
		Phone:     trimmed(in.Phone),
		CreatedAt: s.now(),
	}
	if _, err := s.clients.Add(ctx, c); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func (s *ClientService) Update(ctx context.Context, id string, in ClientInput) (*models.Client, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	patch := map[string]interface{}{
		"name":  trimmed(in.Name),
		"email": trimmed(in.Email),
		"phone": trimmed(in.Phone),
	}
	if err := s.clients.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.clients.Get(ctx, id)
}

func (s *ClientService) Delete(ctx context.Context, id string) error {
	return s.clients.Delete(ctx, id)
}

// FromAppointment prefills a client from an appointment without storing it.
func (s *ClientService) FromAppointment(ctx context.Context, appointmentID string) (*models.Client, error) {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	last := appt.Date
	return &models.Client{
		Name:            appt.Name,
		Email:           appt.Email,
		Phone:           appt.Phone,
		LastAppointment: &last,
	}, nil
}

// TouchLastAppointment moves the last appointment date of clients with email
// forward to at. Clients are matched by exact email.
func (s *ClientService) TouchLastAppointment(ctx context.Context, email string, at time.Time) error {
	email = trimmed(email)
	if email == "" {
		return nil
	}
	found, err := s.clients.Find(ctx, docstore.NewQuery().Where("email", docstore.OpEq, email))
	if err != nil {
		return err
	}
	for _, c := range found {
		if c.LastAppointment != nil && !c.LastAppointment.Before(at) {
			continue
		}
		if err := s.clients.Update(ctx, c.ID, map[string]interface{}{"lastAppointment": at}); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
	}
	return nil
}

// HandleCompleted keeps the last appointment date of the client current.
func (s *ClientService) HandleCompleted(event *events.Event) error {
	var payload events.AppointmentEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return s.TouchLastAppointment(context.Background(), payload.Email, payload.Date)
}
