package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	"github.com/hasanarpat/memento-mori/pkg/pagination"
	"github.com/hasanarpat/memento-mori/pkg/types"
)

// ItemDTO is an order line as shown on the account order page.
type ItemDTO struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	ProductSlug string          `json:"productSlug"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"orderNumber"`
	UserID          *uuid.UUID            `json:"userId,omitempty"`
	Email           string                `json:"email"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentStatus   enums.PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   enums.PaymentMethod   `json:"paymentMethod"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	Discount        decimal.Decimal       `json:"discount"`
	Total           decimal.Decimal       `json:"total"`
	Currency        string                `json:"currency"`
	CouponCode      *string               `json:"couponCode,omitempty"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress"`
	Items           []ItemDTO             `json:"items"`
	CreatedAt       time.Time             `json:"createdAt"`
	CancelledAt     *time.Time            `json:"cancelledAt,omitempty"`
}

type ListResult struct {
	Items      []OrderDTO `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// AdminListInput drives GET /api/admin/orders.
type AdminListInput struct {
	Filters    Filters
	Pagination pagination.Params
}

// UpdateStatusInput carries an admin status change. Either field may be nil
// but not both.
type UpdateStatusInput struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Reason        string
}

func FromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Email:           o.Email,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		Total:           o.Total,
		Currency:        o.Currency,
		CouponCode:      o.CouponCode,
		ShippingAddress: o.ShippingAddress,
		Items:           make([]ItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		CancelledAt:     o.CancelledAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSlug: item.ProductSlug,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return dto
}
