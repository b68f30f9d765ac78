package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/db/models"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
)

const defaultFeedLimit = 50

type CategoryDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  *string   `json:"description,omitempty"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
	ProductCount *int64    `json:"productCount,omitempty"`
}

type PageDTO struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

type TestimonialDTO struct {
	ID     uuid.UUID `json:"id"`
	Author string    `json:"author"`
	Quote  string    `json:"quote"`
	Rating int       `json:"rating"`
}

type ReelDTO struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	VideoURL     string     `json:"videoUrl"`
	ThumbnailURL *string    `json:"thumbnailUrl,omitempty"`
	ProductID    *uuid.UUID `json:"productId,omitempty"`
}

// Service serves read-only CMS content.
type Service interface {
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	GetCategory(ctx context.Context, slug string) (*CategoryDTO, error)
	GetPage(ctx context.Context, slug string) (*PageDTO, error)
	ListTestimonials(ctx context.Context) ([]TestimonialDTO, error)
	ListReels(ctx context.Context) ([]ReelDTO, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("content repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, categoryFromModel(row))
	}
	return out, nil
}

func (s *service) GetCategory(ctx context.Context, slug string) (*CategoryDTO, error) {
	row, err := s.repo.FindCategoryBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, notFoundOr(err, "category not found", "load category")
	}
	count, err := s.repo.CountActiveProducts(ctx, row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count category products")
	}
	dto := categoryFromModel(*row)
	dto.ProductCount = &count
	return &dto, nil
}

func (s *service) GetPage(ctx context.Context, slug string) (*PageDTO, error) {
	row, err := s.repo.FindPublishedPage(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, notFoundOr(err, "page not found", "load page")
	}
	return &PageDTO{Slug: row.Slug, Title: row.Title, Body: row.Body, PublishedAt: row.PublishedAt}, nil
}

func (s *service) ListTestimonials(ctx context.Context) ([]TestimonialDTO, error) {
	rows, err := s.repo.ListApprovedTestimonials(ctx, defaultFeedLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list testimonials")
	}
	out := make([]TestimonialDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, TestimonialDTO{ID: row.ID, Author: row.Author, Quote: row.Quote, Rating: row.Rating})
	}
	return out, nil
}

func (s *service) ListReels(ctx context.Context) ([]ReelDTO, error) {
	rows, err := s.repo.ListActiveReels(ctx, defaultFeedLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reels")
	}
	out := make([]ReelDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ReelDTO{
			ID:           row.ID,
			Title:        row.Title,
			VideoURL:     row.VideoURL,
			ThumbnailURL: row.ThumbnailURL,
			ProductID:    row.ProductID,
		})
	}
	return out, nil
}

func categoryFromModel(c models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		ImageURL:    c.ImageURL,
	}
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, internal)
}
