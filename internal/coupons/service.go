package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/metrics"
)

// Reason identifies why a coupon was rejected.
type Reason string

const (
	ReasonNotFound      Reason = "not_found"
	ReasonInactive      Reason = "inactive"
	ReasonNotYetValid   Reason = "not_yet_valid"
	ReasonExpired       Reason = "expired"
	ReasonMinimumAmount Reason = "minimum_not_met"
	ReasonExhausted     Reason = "usage_limit_reached"
	ReasonNewUsersOnly  Reason = "new_users_only"
	ReasonPerUserLimit  Reason = "per_user_limit_reached"
)

var hundred = decimal.NewFromInt(100)

// Accepted is the result of a successful validation.
type Accepted struct {
	Code          string             `json:"code"`
	DiscountType  enums.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal    `json:"discountValue"`
	Discount      decimal.Decimal    `json:"discount"`
	FinalTotal    decimal.Decimal    `json:"finalTotal"`
}

// PublicCoupon is the listing shape for GET /api/shop/coupons.
type PublicCoupon struct {
	Code               string             `json:"code"`
	Description        *string            `json:"description,omitempty"`
	DiscountType       enums.DiscountType `json:"discountType"`
	DiscountValue      decimal.Decimal    `json:"discountValue"`
	MinimumOrderAmount *decimal.Decimal   `json:"minimumOrderAmount,omitempty"`
	ValidUntil         *time.Time         `json:"validUntil,omitempty"`
}

// Service validates and lists coupons.
type Service interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal, userID *uuid.UUID) (*Accepted, error)
	ValidateTx(ctx context.Context, tx *gorm.DB, code string, orderAmount decimal.Decimal, userID *uuid.UUID) (*Accepted, error)
	ListPublic(ctx context.Context) ([]PublicCoupon, error)
	RecordUsage(ctx context.Context, tx *gorm.DB, code string) error
}

type service struct {
	repo    Repository
	metrics *metrics.ShopMetrics
	now     func() time.Time
}

// NewService constructs the coupon service. m may be nil.
func NewService(repo Repository, m *metrics.ShopMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo, metrics: m, now: time.Now}, nil
}

func (s *service) Validate(ctx context.Context, code string, orderAmount decimal.Decimal, userID *uuid.UUID) (*Accepted, error) {
	return s.validate(ctx, s.repo, code, orderAmount, userID)
}

// ValidateTx runs the same checks against tx so the caller sees its own
// uncommitted writes.
func (s *service) ValidateTx(ctx context.Context, tx *gorm.DB, code string, orderAmount decimal.Decimal, userID *uuid.UUID) (*Accepted, error) {
	return s.validate(ctx, s.repo.WithTx(tx), code, orderAmount, userID)
}

// validate applies the checks in a fixed order; the first failure wins.
func (s *service) validate(ctx context.Context, repo Repository, code string, orderAmount decimal.Decimal, userID *uuid.UUID) (*Accepted, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if orderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must not be negative")
	}

	coupon, err := repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.reject(pkgerrors.CodeNotFound, ReasonNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}

	if !coupon.Active {
		return nil, s.reject(pkgerrors.CodeValidation, ReasonInactive, "coupon is not active")
	}
	now := s.now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return nil, s.reject(pkgerrors.CodeValidation, ReasonNotYetValid, "coupon is not yet valid")
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return nil, s.reject(pkgerrors.CodeValidation, ReasonExpired, "coupon has expired")
	}
	if coupon.MinimumOrderAmount.Valid && orderAmount.LessThan(coupon.MinimumOrderAmount.Decimal) {
		return nil, s.reject(pkgerrors.CodeValidation, ReasonMinimumAmount,
			fmt.Sprintf("minimum order amount is %s", coupon.MinimumOrderAmount.Decimal.StringFixed(2)))
	}
	if coupon.MaxUses != nil && coupon.UsageCount >= *coupon.MaxUses {
		return nil, s.reject(pkgerrors.CodeValidation, ReasonExhausted, "coupon usage limit reached")
	}
	if coupon.NewUsersOnly {
		if userID == nil {
			return nil, s.reject(pkgerrors.CodeValidation, ReasonNewUsersOnly, "coupon is only valid for new customers")
		}
		prior, err := repo.CountActiveOrdersForUser(ctx, *userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count user orders")
		}
		if prior > 0 {
			return nil, s.reject(pkgerrors.CodeValidation, ReasonNewUsersOnly, "coupon is only valid for new customers")
		}
	}
	if coupon.MaxUsesPerUser != nil && userID != nil {
		used, err := repo.CountActiveOrdersWithCode(ctx, *userID, coupon.Code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count coupon usage")
		}
		if used >= int64(*coupon.MaxUsesPerUser) {
			return nil, s.reject(pkgerrors.CodeValidation, ReasonPerUserLimit, "coupon already used the maximum number of times")
		}
	}

	discount := ComputeDiscount(coupon.DiscountType, coupon.DiscountValue, orderAmount)
	return &Accepted{
		Code:          coupon.Code,
		DiscountType:  coupon.DiscountType,
		DiscountValue: coupon.DiscountValue,
		Discount:      discount,
		FinalTotal:    orderAmount.Sub(discount),
	}, nil
}

// ComputeDiscount returns the discount for amount, clamped to [0, amount]
// and rounded to cents.
func ComputeDiscount(kind enums.DiscountType, value, amount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch kind {
	case enums.DiscountTypePercentage:
		discount = amount.Mul(value).Div(hundred)
	case enums.DiscountTypeFixed:
		discount = value
	default:
		return decimal.Zero
	}
	discount = discount.Round(2)
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(amount) {
		return amount
	}
	return discount
}

func (s *service) ListPublic(ctx context.Context) ([]PublicCoupon, error) {
	rows, err := s.repo.ListPublic(ctx, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}
	out := make([]PublicCoupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, publicFromModel(row))
	}
	return out, nil
}

// RecordUsage increments the usage counter inside the order transaction and
// fails when the global cap was reached in the meantime.
func (s *service) RecordUsage(ctx context.Context, tx *gorm.DB, code string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	ok, err := s.repo.WithTx(tx).IncrementUsage(ctx, code)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record coupon usage")
	}
	if !ok {
		return s.reject(pkgerrors.CodeValidation, ReasonExhausted, "coupon usage limit reached")
	}
	return nil
}

func (s *service) reject(code pkgerrors.Code, reason Reason, message string) error {
	s.metrics.IncCouponRejected(string(reason))
	return pkgerrors.New(code, message).WithDetails(map[string]string{"reason": string(reason)})
}

func publicFromModel(c models.Coupon) PublicCoupon {
	out := PublicCoupon{
		Code:          c.Code,
		Description:   c.Description,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		ValidUntil:    c.ValidUntil,
	}
	if c.MinimumOrderAmount.Valid {
		v := c.MinimumOrderAmount.Decimal
		out.MinimumOrderAmount = &v
	}
	return out
}
