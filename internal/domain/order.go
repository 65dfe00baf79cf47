package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order status constants, in lifecycle order.
const (
	OrderStatusProcessing     = "Processing"
	OrderStatusShipped        = "Shipped"
	OrderStatusOutForDelivery = "Out for Delivery"
	OrderStatusDelivered      = "Delivered"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "usd"

// statusRank orders the lifecycle; a status may only move to a higher rank.
var statusRank = map[string]int{
	OrderStatusProcessing:     1,
	OrderStatusShipped:        2,
	OrderStatusOutForDelivery: 3,
	OrderStatusDelivered:      4,
}

// Order is a placed order.
type Order struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	UserID          string          `json:"userId"`
	Items           []LineItem      `json:"orderItems"`
	ShippingAddress Address         `json:"shippingAddress"`
	SubTotal        decimal.Decimal `json:"subTotal"`
	ShippingFee     decimal.Decimal `json:"shippingFees"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Currency        string          `json:"currency"`
	Status          string          `json:"orderStatus"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	TrackingNumber  string          `json:"trackingNumber"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewOrder builds an unpaid order for userID and computes its totals. The
// order has no identifiers until Prepare is called.
func NewOrder(userID string, items []LineItem, addr Address, currency string) *Order {
	if currency == "" {
		currency = DefaultCurrency
	}
	o := &Order{
		UserID:          userID,
		Items:           items,
		ShippingAddress: addr.Trimmed(),
		DiscountAmount:  decimal.Zero,
		Currency:        currency,
		Status:          OrderStatusProcessing,
	}
	o.ComputeTotals()
	return o
}

// ComputeTotals recomputes the order amounts from its line items. Shipping is
// charged once per line item, whatever the quantity.
func (o *Order) ComputeTotals() {
	sub := decimal.Zero
	ship := decimal.Zero
	for _, it := range o.Items {
		sub = sub.Add(it.SubTotal)
		ship = ship.Add(it.ShippingFee)
	}
	o.SubTotal = sub
	o.ShippingFee = ship
	o.TotalPrice = sub.Add(ship).Sub(o.DiscountAmount)
}

// Prepare assigns the primary key, order number, tracking number and
// timestamps. Calling it again replaces all identifiers, which is how a
// colliding insert is retried.
func (o *Order) Prepare(now time.Time) error {
	orderNumber, err := NewOrderNumber()
	if err != nil {
		return err
	}
	tracking, err := NewTrackingNumber()
	if err != nil {
		return err
	}

	o.ID = uuid.NewString()
	o.OrderID = orderNumber
	o.TrackingNumber = tracking
	o.CreatedAt = now.UTC()
	o.UpdatedAt = o.CreatedAt
	return nil
}

// AmountMinorUnits returns the total in the currency's minor unit, rounded
// half away from zero (22.005 -> 2201).
func (o *Order) AmountMinorUnits() int64 {
	return o.TotalPrice.Shift(2).Round(0).IntPart()
}

// IsValidStatus checks if a status string is a lifecycle status.
func IsValidStatus(status string) bool {
	_, ok := statusRank[status]
	return ok
}

// ValidStatuses returns the lifecycle statuses in order.
func ValidStatuses() []string {
	return []string{
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
	}
}

// CanTransitionTo reports whether target is strictly later in the lifecycle
// than the current status. Skipping steps is allowed.
func (o *Order) CanTransitionTo(target string) bool {
	from, ok := statusRank[o.Status]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	return ok && to > from
}

// ApplyStatus moves the order to target, marking delivery when target is
// Delivered.
func (o *Order) ApplyStatus(target string, now time.Time) error {
	if !o.CanTransitionTo(target) {
		return fmt.Errorf("cannot move order from %q to %q", o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = now.UTC()
	if target == OrderStatusDelivered {
		t := o.UpdatedAt
		o.IsDelivered = true
		o.DeliveredAt = &t
	}
	return nil
}

// MarkPaid records a successful payment intent.
func (o *Order) MarkPaid(intentID string, at time.Time) {
	t := at.UTC()
	o.IsPaid = true
	o.PaidAt = &t
	o.PaymentIntentID = intentID
}
