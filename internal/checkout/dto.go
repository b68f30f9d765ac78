package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hasanarpat/memento-mori/pkg/enums"
	"github.com/hasanarpat/memento-mori/pkg/types"
)

// LineInput is a requested cart line. Price is what the client displayed and
// is never used for totals.
type LineInput struct {
	ProductID uuid.UUID        `json:"productId" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,min=1,max=999"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// CreateOrderInput is the body of POST /api/shop/checkout.
type CreateOrderInput struct {
	Items           []LineInput           `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress" validate:"required"`
	PaymentMethod   enums.PaymentMethod   `json:"paymentMethod" validate:"required"`
	CouponCode      *string               `json:"couponCode,omitempty" validate:"omitempty,max=64"`
	Email           string                `json:"email" validate:"omitempty,email,max=254"`
}
