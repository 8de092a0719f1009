package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dealcart/deals-platform/services/orders/internal/domain"
)

type busRecorder struct {
	published []string
}

func (b *busRecorder) Publish(ctx context.Context, subject string, data interface{}) error {
	b.published = append(b.published, subject)
	return nil
}

func (b *busRecorder) Close() error { return nil }

func (b *busRecorder) count(subject string) int {
	var n int
	for _, s := range b.published {
		if s == subject {
			n++
		}
	}
	return n
}

type refundRecorder struct {
	refunded []string
}

func (r *refundRecorder) Refund(ctx context.Context, paymentIntentID string) error {
	r.refunded = append(r.refunded, paymentIntentID)
	return nil
}

func newOrderService(backend *memBackend, bus *busRecorder, refunder *refundRecorder) OrderService {
	return NewOrderService(backend, backend, dealReaderAdapter{backend}, bus, refunder)
}

// seedOrder plants an order with line items directly in the backend.
func seedOrder(backend *memBackend, status domain.OrderStatus, quantities map[int64]int) *domain.Order {
	order, _ := backend.Create(context.Background(), nil)
	backend.orders[order.ID].Status = status
	for dealID, qty := range quantities {
		price := 10.00
		if d, ok := backend.deals[dealID]; ok {
			price = d.Price
		}
		for i := 0; i < qty; i++ {
			backend.AddOne(context.Background(), order.ID, dealID, price)
		}
	}
	refreshed, _ := backend.GetByID(context.Background(), order.ID)
	return refreshed
}

func TestDeliverMintsOneCouponPerUnit(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = sellableDeal(1, 10.00)
	backend.deals[2] = sellableDeal(2, 5.00)
	bus := &busRecorder{}
	svc := newOrderService(backend, bus, &refundRecorder{})

	order := seedOrder(backend, domain.OrderCompleted, map[int64]int{1: 2, 2: 1})
	backend.emails[order.ID] = "buyer@example.com"

	coupons, err := svc.Deliver(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(coupons) != 3 {
		t.Fatalf("got %d coupons, want 3", len(coupons))
	}

	seen := make(map[string]bool)
	for _, c := range coupons {
		if c.Code == "" {
			t.Error("coupon minted with empty code")
		}
		if seen[c.Code] {
			t.Errorf("duplicate coupon code %q", c.Code)
		}
		seen[c.Code] = true
	}

	delivered, _ := backend.GetByID(context.Background(), order.ID)
	if delivered.Status != domain.OrderDelivered {
		t.Errorf("status = %s, want delivered", delivered.Status)
	}
	if got := bus.count("coupon.issued"); got != 3 {
		t.Errorf("coupon.issued events = %d, want 3", got)
	}
	if got := bus.count("order.delivered"); got != 1 {
		t.Errorf("order.delivered events = %d, want 1", got)
	}
}

// cancelRacedBackend loses the delivery status flip to a concurrent cancel:
// by the time the compare-and-set runs, the order row no longer matches.
type cancelRacedBackend struct {
	*memBackend
}

func (b *cancelRacedBackend) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error {
	b.orders[id].Status = domain.OrderCanceled
	return errors.New("no matching order row")
}

func TestDeliverLostRaceMintsNothing(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = sellableDeal(1, 10.00)
	bus := &busRecorder{}
	svc := NewOrderService(&cancelRacedBackend{backend}, backend, dealReaderAdapter{backend}, bus, &refundRecorder{})

	order := seedOrder(backend, domain.OrderCompleted, map[int64]int{1: 2})
	backend.emails[order.ID] = "buyer@example.com"

	if _, err := svc.Deliver(context.Background(), order.ID); err == nil {
		t.Fatal("delivery that lost the status race must fail")
	}

	if len(backend.coupons) != 0 {
		t.Errorf("coupons persisted for an undelivered order: %d", len(backend.coupons))
	}
	if got := bus.count("coupon.issued"); got != 0 {
		t.Errorf("coupon.issued events = %d, want 0", got)
	}
	if got := bus.count("order.delivered"); got != 0 {
		t.Errorf("order.delivered events = %d, want 0", got)
	}
}

func TestDeliverRejectsUnpaidOrder(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = sellableDeal(1, 10.00)
	svc := newOrderService(backend, &busRecorder{}, &refundRecorder{})

	order := seedOrder(backend, domain.OrderPending, map[int64]int{1: 1})

	if _, err := svc.Deliver(context.Background(), order.ID); err == nil {
		t.Error("pending order should not be deliverable")
	}

	unchanged, _ := backend.GetByID(context.Background(), order.ID)
	if unchanged.Status != domain.OrderPending {
		t.Errorf("status = %s, want pending", unchanged.Status)
	}
}

func TestDeliverUnknownOrder(t *testing.T) {
	svc := newOrderService(newMemBackend(), &busRecorder{}, &refundRecorder{})

	if _, err := svc.Deliver(context.Background(), 42); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestCancelRefundsPaidOrder(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = sellableDeal(1, 10.00)
	bus := &busRecorder{}
	refunder := &refundRecorder{}
	svc := newOrderService(backend, bus, refunder)

	order := seedOrder(backend, domain.OrderCompleted, map[int64]int{1: 1})
	backend.SetPaymentIntent(context.Background(), order.ID, "pi_test_123")

	if err := svc.Cancel(context.Background(), order.ID, "customer request"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if len(refunder.refunded) != 1 || refunder.refunded[0] != "pi_test_123" {
		t.Errorf("refunded = %v, want [pi_test_123]", refunder.refunded)
	}
	canceled, _ := backend.GetByID(context.Background(), order.ID)
	if canceled.Status != domain.OrderCanceled {
		t.Errorf("status = %s, want canceled", canceled.Status)
	}
	if got := bus.count("order.canceled"); got != 1 {
		t.Errorf("order.canceled events = %d, want 1", got)
	}
}

func TestCancelPendingOrderSkipsRefund(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = sellableDeal(1, 10.00)
	refunder := &refundRecorder{}
	svc := newOrderService(backend, &busRecorder{}, refunder)

	order := seedOrder(backend, domain.OrderPending, map[int64]int{1: 1})

	if err := svc.Cancel(context.Background(), order.ID, "abandoned"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if len(refunder.refunded) != 0 {
		t.Errorf("pending order should not be refunded, got %v", refunder.refunded)
	}
}

func TestCancelDeliveredOrderRejected(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = sellableDeal(1, 10.00)
	svc := newOrderService(backend, &busRecorder{}, &refundRecorder{})

	order := seedOrder(backend, domain.OrderDelivered, map[int64]int{1: 1})

	if err := svc.Cancel(context.Background(), order.ID, "too late"); err == nil {
		t.Error("delivered order should not be cancelable")
	}
}

func expiredDeal(id int64, minimum int) *domain.DealInfo {
	published := time.Now().Add(-72 * time.Hour)
	return &domain.DealInfo{
		ID:                       id,
		Title:                    "Closed deal",
		Price:                    10.00,
		MinimumPurchasesRequired: minimum,
		StartAt:                  time.Now().Add(-48 * time.Hour),
		ExpireAt:                 time.Now().Add(-time.Hour),
		PublishedAt:              &published,
	}
}

func TestFinalizeDealDeliversWhenMinimumMet(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = expiredDeal(1, 3)
	bus := &busRecorder{}
	svc := newOrderService(backend, bus, &refundRecorder{})

	seedOrder(backend, domain.OrderCompleted, map[int64]int{1: 2})
	seedOrder(backend, domain.OrderCompleted, map[int64]int{1: 1})

	result, err := svc.FinalizeDeal(context.Background(), 1)
	if err != nil {
		t.Fatalf("FinalizeDeal() error = %v", err)
	}
	if !result.CriteriaMet {
		t.Error("3 of 3 units should meet the minimum")
	}
	if result.QuantitySold != 3 {
		t.Errorf("QuantitySold = %d, want 3", result.QuantitySold)
	}
	if result.Delivered != 2 || result.Canceled != 0 {
		t.Errorf("delivered/canceled = %d/%d, want 2/0", result.Delivered, result.Canceled)
	}
	if result.CouponsIssued != 3 {
		t.Errorf("CouponsIssued = %d, want 3", result.CouponsIssued)
	}
}

func TestFinalizeDealCancelsWhenMinimumMissed(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = expiredDeal(1, 10)
	refunder := &refundRecorder{}
	svc := newOrderService(backend, &busRecorder{}, refunder)

	order := seedOrder(backend, domain.OrderCompleted, map[int64]int{1: 2})
	backend.SetPaymentIntent(context.Background(), order.ID, "pi_under_minimum")

	result, err := svc.FinalizeDeal(context.Background(), 1)
	if err != nil {
		t.Fatalf("FinalizeDeal() error = %v", err)
	}
	if result.CriteriaMet {
		t.Error("2 of 10 units should not meet the minimum")
	}
	if result.Delivered != 0 || result.Canceled != 1 {
		t.Errorf("delivered/canceled = %d/%d, want 0/1", result.Delivered, result.Canceled)
	}
	if len(refunder.refunded) != 1 {
		t.Errorf("expected one refund, got %v", refunder.refunded)
	}
}

func TestFinalizeDealRejectsOpenDeal(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = sellableDeal(1, 10.00)
	svc := newOrderService(backend, &busRecorder{}, &refundRecorder{})

	if _, err := svc.FinalizeDeal(context.Background(), 1); !errors.Is(err, ErrDealNotClosed) {
		t.Errorf("err = %v, want ErrDealNotClosed", err)
	}
}

func TestFinalizeExpiredWalksClosedDeals(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = expiredDeal(1, 1)
	backend.deals[2] = sellableDeal(2, 10.00)
	svc := newOrderService(backend, &busRecorder{}, &refundRecorder{})

	seedOrder(backend, domain.OrderCompleted, map[int64]int{1: 1})

	results, err := svc.FinalizeExpired(context.Background())
	if err != nil {
		t.Fatalf("FinalizeExpired() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (open deal skipped)", len(results))
	}
	if results[0].DealID != 1 {
		t.Errorf("DealID = %d, want 1", results[0].DealID)
	}
}

func TestRedeemCoupon(t *testing.T) {
	backend := newMemBackend()
	backend.deals[1] = sellableDeal(1, 10.00)
	svc := newOrderService(backend, &busRecorder{}, &refundRecorder{})

	order := seedOrder(backend, domain.OrderCompleted, map[int64]int{1: 1})
	coupons, err := svc.Deliver(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	redeemed, err := svc.RedeemCoupon(context.Background(), coupons[0].Code, 7)
	if err != nil {
		t.Fatalf("RedeemCoupon() error = %v", err)
	}
	if redeemed == nil || !redeemed.Redeemed() {
		t.Fatal("coupon should be redeemed")
	}

	// Second redemption of the same code fails.
	again, err := svc.RedeemCoupon(context.Background(), coupons[0].Code, 8)
	if err != nil {
		t.Fatalf("RedeemCoupon() error = %v", err)
	}
	if again != nil {
		t.Error("a redeemed coupon should not redeem twice")
	}
}
