package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"salon/internal/availability"
	"salon/internal/docstore"
	"salon/internal/domain"
	"salon/internal/models"
	"salon/internal/repository"
	"salon/internal/validation"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type CatalogService struct {
	services *repository.Collection[models.Service, *models.Service]
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewCatalogService(store domain.DocumentStore, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		services: repository.NewCollection[models.Service](store, models.CollectionServices),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *CatalogService) List(ctx context.Context) ([]*models.Service, error) {
	return s.services.Find(ctx, docstore.NewQuery().OrderBy("title", false))
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Service, error) {
	return s.services.Get(ctx, id)
}

func (s *CatalogService) Create(ctx context.Context, in ServiceInput) (*models.Service, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	svc := fromServiceInput(in)
	svc.CreatedAt = s.now()
	if _, err := s.services.Add(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	s.logger.Info().Str("service_id", svc.ID).Str("title", svc.Title).Msg("Service created")
	return svc, nil
}

// Update replaces the service at id. A missing service is created under id.
func (s *CatalogService) Update(ctx context.Context, id string, in ServiceInput) (*models.Service, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	svc := fromServiceInput(in)
	existing, err := s.services.Get(ctx, id)
	switch {
	case err == nil:
		svc.CreatedAt = existing.CreatedAt
	case errors.Is(err, docstore.ErrNotFound):
		svc.CreatedAt = s.now()
		s.logger.Warn().Str("service_id", id).Msg("Service not found on update, creating")
	default:
		return nil, err
	}
	if err := s.services.Replace(ctx, id, svc); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}
	return svc, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	return s.services.Delete(ctx, id)
}

// Durations returns the duration table keyed by service title.
func (s *CatalogService) Durations(ctx context.Context) (availability.Durations, error) {
	services, err := s.services.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load durations: %w", err)
	}
	durations := make(availability.Durations, len(services))
	for _, svc := range services {
		durations[svc.Title] = svc.DurationOrDefault()
	}
	return durations, nil
}

// Resolve finds a service by id, falling back to its title.
func (s *CatalogService) Resolve(ctx context.Context, id, title string) (*models.Service, error) {
	if id != "" {
		svc, err := s.services.Get(ctx, id)
		if err == nil {
			return svc, nil
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return nil, err
		}
	}
	if title = trimmed(title); title != "" {
		return s.FindByTitle(ctx, title)
	}
	return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
}

func (s *CatalogService) FindByTitle(ctx context.Context, title string) (*models.Service, error) {
	found, err := s.services.Find(ctx, docstore.NewQuery().Where("title", docstore.OpEq, title).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, title)
	}
	return found[0], nil
}

// Seed stores services when the catalog is empty and reports how many were added.
func (s *CatalogService) Seed(ctx context.Context, services []models.Service) (int, error) {
	existing, err := s.services.Find(ctx, docstore.NewQuery().Limit(1))
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := range services {
		svc := services[i]
		svc.CreatedAt = s.now()
		if _, err := s.services.Add(ctx, &svc); err != nil {
			return i, fmt.Errorf("seed service %q: %w", svc.Title, err)
		}
	}
	s.logger.Info().Int("count", len(services)).Msg("Service catalog seeded")
	return len(services), nil
}

// LoadCatalog reads the seed catalog from a YAML file with a top-level services list.
func LoadCatalog(path string) ([]models.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var catalog struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return catalog.Services, nil
}

func fromServiceInput(in ServiceInput) *models.Service {
	return &models.Service{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price,
		Duration:    in.Duration,
		Image:       in.Image,
	}
}
