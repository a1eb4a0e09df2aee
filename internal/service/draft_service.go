package service

import (
	"context"
	"time"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
)

// DraftService keeps the public booking wizard progress between requests.
type DraftService struct {
	drafts     domain.DraftRepository
	rateLimit  int
	rateWindow time.Duration
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewDraftService(drafts domain.DraftRepository, rateLimit int, rateWindow time.Duration, logger *zerolog.Logger) *DraftService {
	if rateLimit <= 0 {
		rateLimit = models.DraftRateLimitRequests
	}
	if rateWindow <= 0 {
		rateWindow = models.DraftRateLimitWindow * time.Second
	}
	return &DraftService{
		drafts:     drafts,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		logger:     logger,
		now:        time.Now,
	}
}

// Allow counts a request of key against the rate limit.
func (s *DraftService) Allow(ctx context.Context, key string) error {
	allowed, err := s.drafts.CheckRateLimit(ctx, key, s.rateLimit, s.rateWindow)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to check rate limit")
		return err
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// Get returns the stored draft or a fresh one at the first step.
func (s *DraftService) Get(ctx context.Context, id string) (*models.BookingDraft, error) {
	draft, err := s.drafts.GetDraft(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("draft_id", id).Msg("failed to get booking draft")
		return nil, err
	}
	if draft == nil {
		draft = &models.BookingDraft{ID: id, Step: models.DraftStepService, Data: make(map[string]interface{})}
	}
	return draft, nil
}

// Save merges data into the draft and moves it to step. Step 0 keeps the current step.
func (s *DraftService) Save(ctx context.Context, id string, step int, data map[string]interface{}) (*models.BookingDraft, error) {
	draft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if step >= models.DraftStepService && step <= models.DraftStepDetails {
		draft.Step = step
	}
	if draft.Data == nil {
		draft.Data = make(map[string]interface{})
	}
	for k, v := range data {
		if v == nil {
			delete(draft.Data, k)
			continue
		}
		draft.Data[k] = v
	}
	draft.UpdatedAt = s.now()
	if err := s.drafts.SetDraft(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *DraftService) Clear(ctx context.Context, id string) error {
	return s.drafts.ClearDraft(ctx, id)
}
