package content

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/internal/repo"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
)

// Repository reads CMS-owned rows.
type Repository struct {
	repo.Base
}

// NewRepository binds the content repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	if err := r.DB(ctx).Order("sort_order ASC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var row models.Category
	if err := r.DB(ctx).Where("slug = ?", slug).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CountActiveProducts returns how many active products belong to a category.
func (r *Repository) CountActiveProducts(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Product{}).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Count(&count).Error
	return count, err
}

// FindPublishedPage returns a page only when it is published.
func (r *Repository) FindPublishedPage(ctx context.Context, slug string) (*models.Page, error) {
	var row models.Page
	if err := r.DB(ctx).Where("slug = ? AND published = ?", slug, true).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) ListApprovedTestimonials(ctx context.Context, limit int) ([]models.Testimonial, error) {
	var rows []models.Testimonial
	err := r.DB(ctx).
		Where("approved = ?", true).
		Order("sort_order ASC").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) ListActiveReels(ctx context.Context, limit int) ([]models.Reel, error) {
	var rows []models.Reel
	err := r.DB(ctx).
		Where("active = ?", true).
		Order("sort_order ASC").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
