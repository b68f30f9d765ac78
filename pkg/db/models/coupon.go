package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/enums"
)

// Coupon is a discount code with eligibility rules. Code is stored upper case.
type Coupon struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code               string              `gorm:"column:code;not null;uniqueIndex:coupons_code_key"`
	Description        *string             `gorm:"column:description"`
	DiscountType       enums.DiscountType  `gorm:"column:discount_type;type:text;not null"`
	DiscountValue      decimal.Decimal     `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinimumOrderAmount decimal.NullDecimal `gorm:"column:minimum_order_amount;type:numeric(12,2)"`
	ValidFrom          *time.Time          `gorm:"column:valid_from"`
	ValidUntil         *time.Time          `gorm:"column:valid_until"`
	MaxUses            *int                `gorm:"column:max_uses"`
	MaxUsesPerUser     *int                `gorm:"column:max_uses_per_user"`
	UsageCount         int                 `gorm:"column:usage_count;not null;default:0"`
	NewUsersOnly       bool                `gorm:"column:new_users_only;not null;default:false"`
	Active             bool                `gorm:"column:active;not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
