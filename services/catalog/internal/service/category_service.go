package service

import (
	"context"
	"fmt"

	"github.com/dealcart/deals-platform/services/catalog/internal/domain"
	"github.com/dealcart/deals-platform/services/catalog/internal/repository"
)

type CategoryService interface {
	CreateCategory(ctx context.Context, req *domain.CreateCategoryRequest) (*domain.Category, *domain.ValidationErrors, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
}

func NewCategoryService(categoryRepo repository.CategoryRepository) CategoryService {
	return &categoryService{categoryRepo: categoryRepo}
}

func (s *categoryService) CreateCategory(ctx context.Context, req *domain.CreateCategoryRequest) (*domain.Category, *domain.ValidationErrors, error) {
	req.Normalize()
	errs := req.Validate()

	if req.Name != "" {
		taken, err := s.categoryRepo.NameTaken(ctx, req.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check category name: %w", err)
		}
		if taken {
			errs.Add("name", "has already been taken")
		}
	}

	if errs.Any() {
		return nil, errs, nil
	}

	category, err := s.categoryRepo.Create(ctx, req.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil, nil
}

func (s *categoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *categoryService) DeleteCategory(ctx context.Context, id int64) error {
	return s.categoryRepo.Delete(ctx, id)
}
