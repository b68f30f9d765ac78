package wishlist

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hasanarpat/memento-mori/pkg/db/models"
)

// Repository persists wishlist rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ReplaceAll(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error
	Add(ctx context.Context, userID, productID uuid.UUID) error
	Remove(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var rows []models.WishlistItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	return ids, nil
}

func (r *repository) ReplaceAll(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.WishlistItem{}).Error; err != nil {
		return err
	}
	if len(productIDs) == 0 {
		return nil
	}
	rows := make([]models.WishlistItem, 0, len(productIDs))
	for i, id := range productIDs {
		rows = append(rows, models.WishlistItem{UserID: userID, ProductID: id, Position: i})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// Add appends productID after the current last entry. Adding an existing
// product is a no-op.
func (r *repository) Add(ctx context.Context, userID, productID uuid.UUID) error {
	var next int
	err := r.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(position), -1) + 1").
		Scan(&next).Error
	if err != nil {
		return err
	}
	row := models.WishlistItem{UserID: userID, ProductID: productID, Position: next}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

func (r *repository) Remove(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
