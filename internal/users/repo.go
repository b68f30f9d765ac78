package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/internal/repo"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
)

// Repository persists storefront accounts. Emails are stored normalized.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to an open transaction. A nil tx keeps r.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.touch(ctx, id, "last_login_at", at, "")
}

// UpdatePasswordHash swaps the stored hash, used when login upgrades costs.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.DB(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("password_hash", hash).Error
}

// MarkEmailVerified stamps email_verified_at once. Later calls are no-ops.
func (r *Repository) MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.touch(ctx, id, "email_verified_at", at, "email_verified_at IS NULL")
}

func (r *Repository) touch(ctx context.Context, id uuid.UUID, column string, at time.Time, guard string) error {
	q := r.DB(ctx).Model(&models.User{}).Where("id = ?", id)
	if guard != "" {
		q = q.Where(guard)
	}
	return q.UpdateColumn(column, at).Error
}
