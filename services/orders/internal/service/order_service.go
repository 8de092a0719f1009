package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/dealcart/deals-platform/services/orders/internal/domain"
	"github.com/dealcart/deals-platform/services/orders/internal/repository"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrDealNotClosed = errors.New("deal has not expired yet")
)

// Refunder reverses a captured payment. The payment service satisfies
// this; order cancellation uses it without owning the Stripe client.
type Refunder interface {
	Refund(ctx context.Context, paymentIntentID string) error
}

type OrderService interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]domain.Order, error)
	ListCoupons(ctx context.Context, orderID int64) ([]domain.Coupon, error)
	Deliver(ctx context.Context, orderID int64) ([]domain.Coupon, error)
	Cancel(ctx context.Context, orderID int64, reason string) error
	FinalizeDeal(ctx context.Context, dealID int64) (*FinalizeResult, error)
	FinalizeExpired(ctx context.Context) ([]FinalizeResult, error)
	RedeemCoupon(ctx context.Context, code string, userID int64) (*domain.Coupon, error)
}

// FinalizeResult records how a closed deal was settled.
type FinalizeResult struct {
	DealID        int64 `json:"deal_id"`
	QuantitySold  int   `json:"quantity_sold"`
	CriteriaMet   bool  `json:"criteria_met"`
	Delivered     int   `json:"orders_delivered"`
	Canceled      int   `json:"orders_canceled"`
	CouponsIssued int   `json:"coupons_issued"`
}

type orderService struct {
	orderRepo  repository.OrderRepository
	couponRepo repository.CouponRepository
	dealReader repository.DealReader
	eventBus   events.Publisher
	refunder   Refunder
	now        func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	couponRepo repository.CouponRepository,
	dealReader repository.DealReader,
	eventBus events.Publisher,
	refunder Refunder,
) OrderService {
	return &orderService{
		orderRepo:  orderRepo,
		couponRepo: couponRepo,
		dealReader: dealReader,
		eventBus:   eventBus,
		refunder:   refunder,
		now:        time.Now,
	}
}

func (s *orderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return s.orderRepo.GetByID(ctx, id)
}

func (s *orderService) ListOrders(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]domain.Order, error) {
	return s.orderRepo.List(ctx, status, limit, offset)
}

func (s *orderService) ListCoupons(ctx context.Context, orderID int64) ([]domain.Coupon, error) {
	return s.couponRepo.ListByOrder(ctx, orderID)
}

// Deliver mints one coupon per purchased unit and moves the order to
// delivered. Only paid orders can be delivered.
func (s *orderService) Deliver(ctx context.Context, orderID int64) ([]domain.Coupon, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := domain.ValidateTransition(order.Status, domain.OrderDelivered); err != nil {
		return nil, err
	}

	email, err := s.orderRepo.BuyerEmail(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up buyer email: %w", err)
	}

	// The compare-and-set status flip runs before any coupon is minted: a
	// concurrent cancel (or a retried delivery) loses the race here and no
	// coupons exist for an order that never reached delivered.
	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, domain.OrderDelivered); err != nil {
		return nil, fmt.Errorf("failed to mark order delivered: %w", err)
	}

	coupons := make([]domain.Coupon, 0, order.UnitCount())
	for i := range order.LineItems {
		li := &order.LineItems[i]
		for n := 0; n < li.Quantity; n++ {
			coupon, err := s.couponRepo.Issue(ctx, li.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to issue coupon for line item %d: %w", li.ID, err)
			}
			coupons = append(coupons, *coupon)

			event := events.CouponIssuedEvent{
				CouponID:   coupon.ID,
				Code:       coupon.Code,
				LineItemID: li.ID,
				DealTitle:  li.DealTitle,
				Email:      email,
				IssuedAt:   coupon.CreatedAt,
			}
			if err := s.eventBus.Publish(ctx, events.CouponIssued, event); err != nil {
				logger.ErrorContext(ctx, "Failed to publish coupon issued event", "error", err, "coupon_id", coupon.ID)
			}
		}
	}

	event := events.OrderDeliveredEvent{
		OrderID:     orderID,
		CouponCount: len(coupons),
		DeliveredAt: s.now(),
	}
	if err := s.eventBus.Publish(ctx, events.OrderDelivered, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish order delivered event", "error", err, "order_id", orderID)
	}

	return coupons, nil
}

// Cancel voids an order. Paid orders are refunded through the payment
// provider before the status flips.
func (s *orderService) Cancel(ctx context.Context, orderID int64, reason string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if err := domain.ValidateTransition(order.Status, domain.OrderCanceled); err != nil {
		return err
	}

	if order.Status == domain.OrderCompleted && order.PaymentIntentID != nil {
		if err := s.refunder.Refund(ctx, *order.PaymentIntentID); err != nil {
			return fmt.Errorf("failed to refund order %d: %w", orderID, err)
		}
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, domain.OrderCanceled); err != nil {
		return fmt.Errorf("failed to mark order canceled: %w", err)
	}

	event := events.OrderCanceledEvent{
		OrderID:    orderID,
		Reason:     reason,
		CanceledAt: s.now(),
	}
	if err := s.eventBus.Publish(ctx, events.OrderCanceled, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish order canceled event", "error", err, "order_id", orderID)
	}

	return nil
}

// FinalizeDeal settles a closed deal: when enough units sold, every
// paid order is delivered; otherwise they are refunded and canceled.
func (s *orderService) FinalizeDeal(ctx context.Context, dealID int64) (*FinalizeResult, error) {
	deal, err := s.dealReader.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, ErrDealNotFound
	}
	if !deal.Expired(s.now()) {
		return nil, ErrDealNotClosed
	}

	sold, err := s.orderRepo.QuantitySold(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sold units: %w", err)
	}

	result := &FinalizeResult{
		DealID:       dealID,
		QuantitySold: sold,
		CriteriaMet:  deal.MinimumCriteriaMet(sold),
	}

	orders, err := s.orderRepo.ListCompletedByDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for deal: %w", err)
	}

	for i := range orders {
		if result.CriteriaMet {
			coupons, err := s.Deliver(ctx, orders[i].ID)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to deliver order during finalization", "error", err, "order_id", orders[i].ID, "deal_id", dealID)
				continue
			}
			result.Delivered++
			result.CouponsIssued += len(coupons)
		} else {
			if err := s.Cancel(ctx, orders[i].ID, "deal did not reach its minimum"); err != nil {
				logger.ErrorContext(ctx, "Failed to cancel order during finalization", "error", err, "order_id", orders[i].ID, "deal_id", dealID)
				continue
			}
			result.Canceled++
		}
	}

	return result, nil
}

// FinalizeExpired settles every published deal past its expire_at.
func (s *orderService) FinalizeExpired(ctx context.Context) ([]FinalizeResult, error) {
	deals, err := s.dealReader.ListExpiredPublished(ctx, s.now())
	if err != nil {
		return nil, err
	}

	results := make([]FinalizeResult, 0, len(deals))
	for i := range deals {
		result, err := s.FinalizeDeal(ctx, deals[i].ID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to finalize deal", "error", err, "deal_id", deals[i].ID)
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

func (s *orderService) RedeemCoupon(ctx context.Context, code string, userID int64) (*domain.Coupon, error) {
	return s.couponRepo.Redeem(ctx, code, userID)
}
