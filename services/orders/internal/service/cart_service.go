package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealcart/deals-platform/pkg/token"
	"github.com/dealcart/deals-platform/services/orders/internal/domain"
	"github.com/dealcart/deals-platform/services/orders/internal/repository"
)

var (
	ErrDealNotFound       = errors.New("deal not found")
	ErrDealNotSellable    = errors.New("deal is not open for purchase")
	ErrPurchaseCapReached = errors.New("per-customer purchase limit reached")
	ErrCartNotFound       = errors.New("cart not found")
)

// CartService drives the anonymous shopping cart. A cart is a pending
// order addressed by an opaque session token.
type CartService interface {
	GetCart(ctx context.Context, cartToken string) (*domain.Order, error)
	AddItem(ctx context.Context, cartToken string, dealID int64, userID *int64) (*domain.Order, string, error)
	DecrementItem(ctx context.Context, cartToken string, dealID int64) (*domain.Order, error)
	RemoveItem(ctx context.Context, cartToken string, dealID int64) (*domain.Order, error)
}

type cartService struct {
	orderRepo    repository.OrderRepository
	lineItemRepo repository.LineItemRepository
	sessionRepo  repository.CartSessionRepository
	dealReader   repository.DealReader
	now          func() time.Time
}

func NewCartService(
	orderRepo repository.OrderRepository,
	lineItemRepo repository.LineItemRepository,
	sessionRepo repository.CartSessionRepository,
	dealReader repository.DealReader,
) CartService {
	return &cartService{
		orderRepo:    orderRepo,
		lineItemRepo: lineItemRepo,
		sessionRepo:  sessionRepo,
		dealReader:   dealReader,
		now:          time.Now,
	}
}

func (s *cartService) GetCart(ctx context.Context, cartToken string) (*domain.Order, error) {
	order, _, err := s.resolve(ctx, cartToken)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AddItem puts one unit of the deal in the cart, creating the cart
// when the token is empty or expired. Returns the cart and the token
// to hand back to the client.
func (s *cartService) AddItem(ctx context.Context, cartToken string, dealID int64, userID *int64) (*domain.Order, string, error) {
	deal, err := s.dealReader.GetByID(ctx, dealID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load deal: %w", err)
	}
	if deal == nil {
		return nil, "", ErrDealNotFound
	}
	if !deal.Sellable(s.now()) {
		return nil, "", ErrDealNotSellable
	}

	if userID != nil && deal.MaxPurchasesPerCustomer > 0 {
		bought, err := s.dealReader.QuantityByCustomer(ctx, dealID, *userID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to count prior purchases: %w", err)
		}
		if bought >= deal.MaxPurchasesPerCustomer {
			return nil, "", ErrPurchaseCapReached
		}
	}

	order, cartToken, err := s.resolveOrCreate(ctx, cartToken, userID)
	if err != nil {
		return nil, "", err
	}

	if _, err := s.lineItemRepo.AddOne(ctx, order.ID, dealID, deal.Price); err != nil {
		return nil, "", fmt.Errorf("failed to add line item: %w", err)
	}
	if err := s.sessionRepo.Touch(ctx, cartToken); err != nil {
		return nil, "", fmt.Errorf("failed to extend cart session: %w", err)
	}

	order, err = s.orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		return nil, "", err
	}
	return order, cartToken, nil
}

// DecrementItem removes one unit. The line item is destroyed when its
// quantity reaches zero.
func (s *cartService) DecrementItem(ctx context.Context, cartToken string, dealID int64) (*domain.Order, error) {
	order, _, err := s.resolve(ctx, cartToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.lineItemRepo.DecrementOne(ctx, order.ID, dealID); err != nil {
		return nil, fmt.Errorf("failed to decrement line item: %w", err)
	}

	return s.orderRepo.GetByID(ctx, order.ID)
}

func (s *cartService) RemoveItem(ctx context.Context, cartToken string, dealID int64) (*domain.Order, error) {
	order, _, err := s.resolve(ctx, cartToken)
	if err != nil {
		return nil, err
	}

	if err := s.lineItemRepo.Remove(ctx, order.ID, dealID); err != nil {
		return nil, fmt.Errorf("failed to remove line item: %w", err)
	}

	return s.orderRepo.GetByID(ctx, order.ID)
}

func (s *cartService) resolve(ctx context.Context, cartToken string) (*domain.Order, string, error) {
	if cartToken == "" {
		return nil, "", ErrCartNotFound
	}

	orderID, err := s.sessionRepo.Lookup(ctx, cartToken)
	if errors.Is(err, repository.ErrNoSession) {
		return nil, "", ErrCartNotFound
	}
	if err != nil {
		return nil, "", err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if order == nil || order.Status != domain.OrderPending {
		return nil, "", ErrCartNotFound
	}
	return order, cartToken, nil
}

func (s *cartService) resolveOrCreate(ctx context.Context, cartToken string, userID *int64) (*domain.Order, string, error) {
	order, cartToken, err := s.resolve(ctx, cartToken)
	if err == nil {
		return order, cartToken, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, "", err
	}

	cartToken, err = token.New()
	if err != nil {
		return nil, "", fmt.Errorf("failed to mint cart token: %w", err)
	}

	order, err = s.orderRepo.Create(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create cart order: %w", err)
	}
	if err := s.sessionRepo.Bind(ctx, cartToken, order.ID); err != nil {
		return nil, "", fmt.Errorf("failed to bind cart session: %w", err)
	}
	return order, cartToken, nil
}
