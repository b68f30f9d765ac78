package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	"github.com/hasanarpat/memento-mori/pkg/pagination"
)

// Repository is the catalog persistence surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Product, error)
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	RestoreStock(ctx context.Context, id uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a products repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("products.is_active = ?", true)
}

func (r *repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	q := r.active(ctx).Preload("Category")

	if slug := strings.TrimSpace(filters.CategorySlug); slug != "" {
		sub := r.db.WithContext(ctx).Model(&models.Category{}).Select("id").Where("slug = ?", slug)
		q = q.Where("products.category_id IN (?)", sub)
	}
	if filters.PriceMin != nil {
		q = q.Where("products.price >= ?", *filters.PriceMin)
	}
	if filters.PriceMax != nil {
		q = q.Where("products.price <= ?", *filters.PriceMax)
	}
	if filters.InStock {
		q = q.Where("products.stock > 0")
	}
	if filters.Featured {
		q = q.Where("products.is_featured = ?", true)
	}

	var err error
	q, err = applySort(q, filters.Sort, cursor)
	if err != nil {
		return nil, err
	}

	var rows []models.Product
	if err := q.Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applySort(q *gorm.DB, sort enums.ProductSort, cursor *pagination.Cursor) (*gorm.DB, error) {
	switch sort {
	case enums.ProductSortPriceAsc:
		if cursor != nil {
			price, err := decimal.NewFromString(cursor.Key)
			if err != nil {
				return nil, fmt.Errorf("invalid cursor price: %w", err)
			}
			q = q.Where("(products.price > ?) OR (products.price = ? AND products.id > ?)", price, price, cursor.ID)
		}
		return q.Order("products.price ASC").Order("products.id ASC"), nil
	case enums.ProductSortPriceDesc:
		if cursor != nil {
			price, err := decimal.NewFromString(cursor.Key)
			if err != nil {
				return nil, fmt.Errorf("invalid cursor price: %w", err)
			}
			q = q.Where("(products.price < ?) OR (products.price = ? AND products.id < ?)", price, price, cursor.ID)
		}
		return q.Order("products.price DESC").Order("products.id DESC"), nil
	default:
		if cursor != nil {
			at, err := cursor.Time()
			if err != nil {
				return nil, err
			}
			q = q.Where("(products.created_at < ?) OR (products.created_at = ? AND products.id < ?)", at, at, cursor.ID)
		}
		return q.Order("products.created_at DESC").Order("products.id DESC"), nil
	}
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.active(ctx).Preload("Category").Where("products.slug = ?", slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByID loads a product regardless of its active flag; callers decide
// whether inactive products are acceptable.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Preload("Category").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	var rows []models.Product
	err := r.active(ctx).
		Preload("Category").
		Where("(LOWER(products.name) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(products.description, '')) LIKE ? ESCAPE '\\')", pattern, pattern).
		Order("products.is_featured DESC").
		Order("products.name ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DecrementStock removes qty units only when enough stock remains. It reports
// false when the guard rejected the update.
func (r *repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RestoreStock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty)).Error
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
