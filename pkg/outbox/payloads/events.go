package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/hasanarpat/memento-mori/pkg/enums"
)

// OrderCreatedEvent is emitted inside the checkout transaction.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	UserID      *uuid.UUID          `json:"user_id,omitempty"`
	Email       string              `json:"email"`
	Subtotal    string              `json:"subtotal"`
	Discount    string              `json:"discount"`
	Total       string              `json:"total"`
	Currency    string              `json:"currency"`
	CouponCode  *string             `json:"coupon_code,omitempty"`
	Payment     enums.PaymentMethod `json:"payment_method"`
	Items       []OrderLine         `json:"items"`
}

// OrderLine is a purchased product snapshot.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
}

// OrderStatusChangedEvent records an admin status transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// OrderCancelledEvent is emitted when an order moves to cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// UserRegisteredEvent signals a new customer account.
type UserRegisteredEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// CouponExpiredEvent is emitted by the coupon expiry job.
type CouponExpiredEvent struct {
	CouponID   uuid.UUID `json:"coupon_id"`
	Code       string    `json:"code"`
	ValidUntil time.Time `json:"valid_until"`
}
