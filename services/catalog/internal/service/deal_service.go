package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/dealcart/deals-platform/services/catalog/internal/domain"
	"github.com/dealcart/deals-platform/services/catalog/internal/repository"
)

type DealProgress struct {
	DealID             int64 `json:"deal_id"`
	QuantitySold       int   `json:"quantity_sold"`
	QuantityLeft       int   `json:"quantity_left"`
	PercentageSold     int   `json:"percentage_sold"`
	MinimumCriteriaMet bool  `json:"minimum_criteria_met"`
}

type DealService interface {
	CreateDeal(ctx context.Context, d *domain.Deal) (*domain.Deal, *domain.ValidationErrors, error)
	GetDeal(ctx context.Context, id int64) (*domain.Deal, error)
	ListDeals(ctx context.Context, limit, offset int) ([]domain.Deal, error)
	UpdateDeal(ctx context.Context, id int64, updated *domain.Deal) (*domain.Deal, *domain.ValidationErrors, error)
	DeleteDeal(ctx context.Context, id int64) error
	Publish(ctx context.Context, id int64) (*domain.Deal, *domain.ValidationErrors, error)
	Unpublish(ctx context.Context, id int64) (*domain.Deal, *domain.ValidationErrors, error)
	Progress(ctx context.Context, id int64) (*DealProgress, error)
}

type dealService struct {
	dealRepo repository.DealRepository
	eventBus events.EventBus
}

func NewDealService(dealRepo repository.DealRepository, eventBus events.EventBus) DealService {
	return &dealService{
		dealRepo: dealRepo,
		eventBus: eventBus,
	}
}

func (s *dealService) CreateDeal(ctx context.Context, d *domain.Deal) (*domain.Deal, *domain.ValidationErrors, error) {
	errs := domain.ValidateNew(d, time.Now())

	taken, err := s.dealRepo.TitleTaken(ctx, d.Title, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check title uniqueness: %w", err)
	}
	if taken {
		errs.Add("title", "has already been taken")
	}

	if errs.Any() {
		return nil, errs, nil
	}

	created, err := s.dealRepo.Create(ctx, d)
	if err != nil {
		var rb *repository.RollbackError
		if errors.As(err, &rb) {
			return nil, rb.Errs, nil
		}
		return nil, nil, fmt.Errorf("failed to create deal: %w", err)
	}

	return created, nil, nil
}

func (s *dealService) GetDeal(ctx context.Context, id int64) (*domain.Deal, error) {
	return s.dealRepo.GetByID(ctx, id)
}

func (s *dealService) ListDeals(ctx context.Context, limit, offset int) ([]domain.Deal, error) {
	return s.dealRepo.List(ctx, limit, offset)
}

func (s *dealService) UpdateDeal(ctx context.Context, id int64, updated *domain.Deal) (*domain.Deal, *domain.ValidationErrors, error) {
	old, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load deal: %w", err)
	}
	if old == nil {
		return nil, nil, nil
	}

	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt

	errs := domain.ValidateTransition(old, updated, time.Now())

	taken, err := s.dealRepo.TitleTaken(ctx, updated.Title, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check title uniqueness: %w", err)
	}
	if taken {
		errs.Add("title", "has already been taken")
	}

	if errs.Any() {
		return nil, errs, nil
	}

	saved, err := s.dealRepo.Update(ctx, updated)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update deal: %w", err)
	}
	if saved == nil {
		return nil, nil, nil
	}

	// Removed attachments are purged off the request path.
	for _, img := range updated.Images {
		if img.Remove && img.ID != 0 {
			event := events.DealImagePurgeEvent{
				DealID:   saved.ID,
				ImageID:  img.ID,
				Filename: img.Filename,
			}
			if err := s.eventBus.Publish(ctx, events.DealImagePurge, event); err != nil {
				logger.ErrorContext(ctx, "Failed to publish image purge event", "error", err, "deal_id", saved.ID, "image_id", img.ID)
			}
		}
	}

	return saved, nil, nil
}

func (s *dealService) DeleteDeal(ctx context.Context, id int64) error {
	return s.dealRepo.Delete(ctx, id)
}

// Publish moves the publish timestamp like any other save: the transition
// runs through the same validator as an edit, so a deal without locations,
// without images, or owned by a collection never goes live here.
func (s *dealService) Publish(ctx context.Context, id int64) (*domain.Deal, *domain.ValidationErrors, error) {
	old, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load deal: %w", err)
	}
	if old == nil {
		return nil, nil, nil
	}

	now := time.Now()
	updated := *old
	updated.PublishedAt = &now

	if errs := domain.ValidateTransition(old, &updated, now); errs.Any() {
		return nil, errs, nil
	}

	ts, err := s.dealRepo.SetPublishedAt(ctx, id, &now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to publish deal: %w", err)
	}
	updated.PublishedAt = ts

	if ts != nil {
		event := events.DealPublishedEvent{
			DealID:      updated.ID,
			Title:       updated.Title,
			PublishedAt: *ts,
		}
		if err := s.eventBus.Publish(ctx, events.DealPublished, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish deal published event", "error", err, "deal_id", id)
		}
	}

	return &updated, nil, nil
}

func (s *dealService) Unpublish(ctx context.Context, id int64) (*domain.Deal, *domain.ValidationErrors, error) {
	old, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load deal: %w", err)
	}
	if old == nil {
		return nil, nil, nil
	}

	updated := *old
	updated.PublishedAt = nil

	if errs := domain.ValidateTransition(old, &updated, time.Now()); errs.Any() {
		return nil, errs, nil
	}

	if _, err := s.dealRepo.SetPublishedAt(ctx, id, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to unpublish deal: %w", err)
	}

	if err := s.eventBus.Publish(ctx, events.DealUnpublished, map[string]int64{"deal_id": id}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish deal unpublished event", "error", err, "deal_id", id)
	}

	return &updated, nil, nil
}

func (s *dealService) Progress(ctx context.Context, id int64) (*DealProgress, error) {
	deal, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load deal: %w", err)
	}
	if deal == nil {
		return nil, nil
	}

	sold, err := s.dealRepo.QuantitySold(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to sum quantity sold: %w", err)
	}

	return &DealProgress{
		DealID:             deal.ID,
		QuantitySold:       sold,
		QuantityLeft:       deal.QuantityLeft(sold),
		PercentageSold:     deal.PercentageSold(sold),
		MinimumCriteriaMet: deal.MinimumCriteriaMet(sold),
	}, nil
}
