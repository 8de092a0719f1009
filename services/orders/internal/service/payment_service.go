package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"

	"github.com/dealcart/deals-platform/pkg/config"
	"github.com/dealcart/deals-platform/pkg/events"
	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/dealcart/deals-platform/services/orders/internal/domain"
	"github.com/dealcart/deals-platform/services/orders/internal/repository"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrPaymentPending = errors.New("payment has not succeeded yet")
)

// Checkout is the client-facing half of a payment: the Stripe client
// secret plus the amount the intent was created for.
type Checkout struct {
	OrderID      int64   `json:"order_id"`
	ClientSecret string  `json:"client_secret"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	Total        float64 `json:"total"`
}

type PaymentService interface {
	CreateCheckout(ctx context.Context, orderID int64) (*Checkout, error)
	ConfirmPayment(ctx context.Context, orderID int64) (*domain.Order, error)
	Refund(ctx context.Context, paymentIntentID string) error
}

type paymentService struct {
	orderRepo repository.OrderRepository
	eventBus  events.Publisher
	config    *config.Config
	now       func() time.Time
}

func NewPaymentService(orderRepo repository.OrderRepository, eventBus events.Publisher, cfg *config.Config) PaymentService {
	stripe.Key = cfg.Stripe.SecretKey
	return &paymentService{
		orderRepo: orderRepo,
		eventBus:  eventBus,
		config:    cfg,
		now:       time.Now,
	}
}

// amountInCents converts a dollar total to the integer minor unit
// Stripe expects.
func amountInCents(total float64) int64 {
	return int64(math.Round(total * 100))
}

// CreateCheckout opens a payment intent for a pending cart and pins it
// to the order.
func (s *paymentService) CreateCheckout(ctx context.Context, orderID int64) (*Checkout, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != domain.OrderPending {
		return nil, fmt.Errorf("order %d is %s, not pending", orderID, order.Status)
	}
	if order.Empty() {
		return nil, ErrEmptyCart
	}

	total := order.Total()
	amount := amountInCents(total)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.config.Stripe.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", fmt.Sprintf("%d", orderID))

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if err := s.orderRepo.SetPaymentIntent(ctx, orderID, intent.ID); err != nil {
		return nil, fmt.Errorf("failed to store payment intent: %w", err)
	}

	return &Checkout{
		OrderID:      orderID,
		ClientSecret: intent.ClientSecret,
		Amount:       amount,
		Currency:     s.config.Stripe.Currency,
		Total:        total,
	}, nil
}

// ConfirmPayment checks the intent with Stripe and completes the order
// once the charge succeeded.
func (s *paymentService) ConfirmPayment(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := domain.ValidateTransition(order.Status, domain.OrderCompleted); err != nil {
		return nil, err
	}
	if order.PaymentIntentID == nil {
		return nil, fmt.Errorf("order %d has no payment intent", orderID)
	}

	intent, err := paymentintent.Get(*order.PaymentIntentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment intent: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, ErrPaymentPending
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, domain.OrderCompleted); err != nil {
		return nil, fmt.Errorf("failed to mark order completed: %w", err)
	}

	event := events.OrderCompletedEvent{
		OrderID:     orderID,
		UserID:      order.UserID,
		Total:       order.Total(),
		CompletedAt: s.now(),
	}
	if err := s.eventBus.Publish(ctx, events.OrderCompleted, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish order completed event", "error", err, "order_id", orderID)
	}

	return s.orderRepo.GetByID(ctx, orderID)
}

func (s *paymentService) Refund(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to refund payment intent %s: %w", paymentIntentID, err)
	}
	return nil
}
