package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/config"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/pagination"
)

const maxSearchQueryLength = 100

// Service exposes storefront catalog reads.
type Service interface {
	List(ctx context.Context, input ListInput) (*ListResult, error)
	GetBySlug(ctx context.Context, slug string) (*ProductDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Search(ctx context.Context, query string, limit int) ([]ProductDTO, error)
}

type service struct {
	repo              Repository
	lowStockThreshold int
	searchLimit       int
}

// NewService constructs the catalog service.
func NewService(repo Repository, cfg config.ShopConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	searchLimit := cfg.SearchLimit
	if searchLimit <= 0 {
		searchLimit = pagination.DefaultLimit
	}
	return &service{
		repo:              repo,
		lowStockThreshold: cfg.LowStockThreshold,
		searchLimit:       searchLimit,
	}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	filters := input.Filters
	if filters.Sort == "" {
		filters.Sort = enums.ProductSortNewest
	}
	if !filters.Sort.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort")
	}
	if filters.PriceMin != nil && filters.PriceMax != nil && filters.PriceMin.GreaterThan(*filters.PriceMax) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minPrice must not exceed maxPrice")
	}
	if (filters.PriceMin != nil && filters.PriceMin.IsNegative()) || (filters.PriceMax != nil && filters.PriceMax.IsNegative()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price filters must be positive")
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		if err := validateCursorKey(filters.Sort, *cursor); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
	}

	rows, err := s.repo.List(ctx, filters, cursor, input.Pagination.FetchSize())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	rows, next := pagination.Trim(rows, input.Pagination, func(p models.Product) pagination.Cursor {
		return cursorFor(filters.Sort, p)
	})
	result := &ListResult{Items: make([]ProductDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Items = append(result.Items, FromModel(row, s.lowStockThreshold))
	}
	return result, nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*ProductDTO, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	dto := FromModel(*product, s.lowStockThreshold)
	return &dto, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := FromModel(*product, s.lowStockThreshold)
	return &dto, nil
}

func (s *service) Search(ctx context.Context, query string, limit int) ([]ProductDTO, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []ProductDTO{}, nil
	}
	if len(query) > maxSearchQueryLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query too long")
	}
	if limit <= 0 || limit > s.searchLimit {
		limit = s.searchLimit
	}
	rows, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row, s.lowStockThreshold))
	}
	return out, nil
}

func validateCursorKey(sort enums.ProductSort, cursor pagination.Cursor) error {
	switch sort {
	case enums.ProductSortPriceAsc, enums.ProductSortPriceDesc:
		_, err := decimal.NewFromString(cursor.Key)
		return err
	default:
		_, err := cursor.Time()
		return err
	}
}
