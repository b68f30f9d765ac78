package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	"github.com/hasanarpat/memento-mori/pkg/pagination"
)

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	CategorySlug string
	PriceMin     *decimal.Decimal
	PriceMax     *decimal.Decimal
	InStock      bool
	Featured     bool
	Sort         enums.ProductSort
}

// ListInput captures the inputs needed to paginate and filter the catalog.
type ListInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// CategorySummary is embedded in product payloads.
type CategorySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// ProductDTO is the storefront shape of a product.
type ProductDTO struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Slug           string           `json:"slug"`
	Description    *string          `json:"description,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice,omitempty"`
	Stock          int              `json:"stock"`
	InStock        bool             `json:"inStock"`
	LowStock       bool             `json:"lowStock"`
	Category       *CategorySummary `json:"category,omitempty"`
	Images         []string         `json:"images"`
	Sizes          []string         `json:"sizes"`
	Tags           []string         `json:"tags"`
	IsFeatured     bool             `json:"isFeatured"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// ListResult is one page of products.
type ListResult struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// FromModel maps a product row. Products at or below lowStockThreshold units
// (and still in stock) are flagged as low stock.
func FromModel(p models.Product, lowStockThreshold int) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
		LowStock:    p.Stock > 0 && p.Stock <= lowStockThreshold,
		Images:      nonNil(p.Images),
		Sizes:       nonNil(p.Sizes),
		Tags:        nonNil(p.Tags),
		IsFeatured:  p.IsFeatured,
		CreatedAt:   p.CreatedAt,
	}
	if p.CompareAtPrice.Valid {
		v := p.CompareAtPrice.Decimal
		dto.CompareAtPrice = &v
	}
	if p.Category != nil {
		dto.Category = &CategorySummary{ID: p.Category.ID, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	return dto
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}

// cursorFor renders the sort key of the last row on a page.
func cursorFor(sort enums.ProductSort, p models.Product) pagination.Cursor {
	switch sort {
	case enums.ProductSortPriceAsc, enums.ProductSortPriceDesc:
		return pagination.Cursor{Key: p.Price.String(), ID: p.ID}
	default:
		return pagination.TimeCursor(p.CreatedAt, p.ID)
	}
}
