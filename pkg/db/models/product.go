package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/hasanarpat/memento-mori/pkg/db/types"
)

// Product is a catalog listing. Price is authoritative for checkout.
type Product struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name           string              `gorm:"column:name;not null"`
	Slug           string              `gorm:"column:slug;not null;uniqueIndex:products_slug_key"`
	Description    *string             `gorm:"column:description"`
	Price          decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	CompareAtPrice decimal.NullDecimal `gorm:"column:compare_at_price;type:numeric(12,2)"`
	Stock          int                 `gorm:"column:stock;not null;default:0"`
	CategoryID     *uuid.UUID          `gorm:"column:category_id;type:uuid;index:idx_products_category_id"`
	Category       *Category           `gorm:"foreignKey:CategoryID"`
	Images         dbtypes.StringArray `gorm:"column:images;not null"`
	Sizes          dbtypes.StringArray `gorm:"column:sizes;not null"`
	Tags           dbtypes.StringArray `gorm:"column:tags;not null"`
	IsActive       bool                `gorm:"column:is_active;not null"`
	IsFeatured     bool                `gorm:"column:is_featured;not null;default:false"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// InStock reports whether at least qty units are available.
func (p Product) InStock(qty int) bool {
	return p.Stock >= qty
}
