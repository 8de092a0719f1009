package domain

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order. Carts are pending
// orders; payment completes them, coupon issuance delivers them.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderDelivered OrderStatus = "delivered"
	OrderCanceled  OrderStatus = "canceled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderDelivered, OrderCanceled:
		return true
	}
	return false
}

// legalTransitions maps each status to the statuses it may move to.
// Delivered and canceled are terminal.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderCompleted, OrderCanceled},
	OrderCompleted: {OrderDelivered, OrderCanceled},
	OrderDelivered: {},
	OrderCanceled:  {},
}

// ValidateTransition reports whether an order may move from one status
// to another.
func ValidateTransition(from, to OrderStatus) error {
	if !from.Valid() {
		return fmt.Errorf("unknown order status %q", from)
	}
	if !to.Valid() {
		return fmt.Errorf("unknown order status %q", to)
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("order cannot move from %s to %s", from, to)
}

type Order struct {
	ID              int64       `json:"id"`
	Status          OrderStatus `json:"status"`
	UserID          *int64      `json:"user_id,omitempty"`
	PaymentIntentID *string     `json:"-"`
	LineItems       []LineItem  `json:"line_items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Total sums the line item totals.
func (o *Order) Total() float64 {
	var total float64
	for i := range o.LineItems {
		total += o.LineItems[i].TotalPrice()
	}
	return total
}

// UnitCount is the number of coupons a delivery will mint.
func (o *Order) UnitCount() int {
	var n int
	for i := range o.LineItems {
		n += o.LineItems[i].Quantity
	}
	return n
}

func (o *Order) Empty() bool {
	return len(o.LineItems) == 0
}

type LineItem struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	DealID    int64     `json:"deal_id"`
	DealTitle string    `json:"deal_title,omitempty"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalPrice is the unit price times the quantity.
func (li *LineItem) TotalPrice() float64 {
	return li.Price * float64(li.Quantity)
}

type Coupon struct {
	ID         int64      `json:"id"`
	LineItemID int64      `json:"line_item_id"`
	Code       string     `json:"code"`
	RedeemedBy *int64     `json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (c *Coupon) Redeemed() bool {
	return c.RedeemedAt != nil
}

// DealInfo is the slice of the catalog an order needs: enough to price
// a line item and to decide whether a deal can be sold right now.
type DealInfo struct {
	ID                       int64      `json:"id"`
	Title                    string     `json:"title"`
	Price                    float64    `json:"price"`
	MinimumPurchasesRequired int        `json:"minimum_purchases_required"`
	MaximumPurchasesAllowed  int        `json:"maximum_purchases_allowed"`
	MaxPurchasesPerCustomer  int        `json:"maximum_purchases_per_customer"`
	StartAt                  time.Time  `json:"start_at"`
	ExpireAt                 time.Time  `json:"expire_at"`
	PublishedAt              *time.Time `json:"published_at,omitempty"`
}

// Sellable reports whether the deal is published, started and not yet
// expired at the given instant.
func (d *DealInfo) Sellable(now time.Time) bool {
	if d.PublishedAt == nil {
		return false
	}
	return !now.Before(d.StartAt) && now.Before(d.ExpireAt)
}

func (d *DealInfo) Expired(now time.Time) bool {
	return !d.ExpireAt.After(now)
}

// MinimumCriteriaMet reports whether enough units were sold for the
// deal to go through.
func (d *DealInfo) MinimumCriteriaMet(quantitySold int) bool {
	return quantitySold >= d.MinimumPurchasesRequired
}
