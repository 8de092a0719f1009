package domain

import (
	"testing"
	"time"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		wantErr  bool
	}{
		{OrderPending, OrderCompleted, false},
		{OrderPending, OrderCanceled, false},
		{OrderCompleted, OrderDelivered, false},
		{OrderCompleted, OrderCanceled, false},
		{OrderPending, OrderDelivered, true},
		{OrderDelivered, OrderCanceled, true},
		{OrderDelivered, OrderCompleted, true},
		{OrderCanceled, OrderPending, true},
		{OrderCompleted, OrderPending, true},
		{OrderStatus("shipped"), OrderDelivered, true},
		{OrderPending, OrderStatus("archived"), true},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
	}
}

func TestLineItemTotalPrice(t *testing.T) {
	li := LineItem{Price: 19.99, Quantity: 3}
	if got, want := li.TotalPrice(), 59.97; got != want {
		t.Errorf("TotalPrice() = %v, want %v", got, want)
	}
}

func TestOrderTotalAndUnitCount(t *testing.T) {
	order := Order{
		LineItems: []LineItem{
			{Price: 10.00, Quantity: 2},
			{Price: 5.50, Quantity: 1},
		},
	}
	if got, want := order.Total(), 25.50; got != want {
		t.Errorf("Total() = %v, want %v", got, want)
	}
	if got, want := order.UnitCount(), 3; got != want {
		t.Errorf("UnitCount() = %d, want %d", got, want)
	}
	if order.Empty() {
		t.Error("order with line items should not be empty")
	}
}

func TestDealInfoSellable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	published := now.Add(-48 * time.Hour)

	deal := DealInfo{
		StartAt:     now.Add(-24 * time.Hour),
		ExpireAt:    now.Add(24 * time.Hour),
		PublishedAt: &published,
	}
	if !deal.Sellable(now) {
		t.Error("published, started, unexpired deal should be sellable")
	}

	unpublished := deal
	unpublished.PublishedAt = nil
	if unpublished.Sellable(now) {
		t.Error("unpublished deal should not be sellable")
	}

	notStarted := deal
	notStarted.StartAt = now.Add(time.Hour)
	if notStarted.Sellable(now) {
		t.Error("deal before start_at should not be sellable")
	}

	expired := deal
	expired.ExpireAt = now.Add(-time.Minute)
	if expired.Sellable(now) {
		t.Error("expired deal should not be sellable")
	}
	if !expired.Expired(now) {
		t.Error("Expired() should report true past expire_at")
	}
}

func TestDealInfoMinimumCriteriaMet(t *testing.T) {
	deal := DealInfo{MinimumPurchasesRequired: 10}
	if deal.MinimumCriteriaMet(9) {
		t.Error("9 of 10 should not meet the minimum")
	}
	if !deal.MinimumCriteriaMet(10) {
		t.Error("10 of 10 should meet the minimum")
	}
}
