package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page is a CMS page addressed by slug.
type Page struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Slug        string     `gorm:"column:slug;not null;uniqueIndex:pages_slug_key"`
	Title       string     `gorm:"column:title;not null"`
	Body        string     `gorm:"column:body;not null"`
	Published   bool       `gorm:"column:published;not null;default:false"`
	PublishedAt *time.Time `gorm:"column:published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Page) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

type Testimonial struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Author    string    `gorm:"column:author;not null"`
	Quote     string    `gorm:"column:quote;not null"`
	Rating    int       `gorm:"column:rating;not null;default:5"`
	Approved  bool      `gorm:"column:approved;not null;default:false"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (t *Testimonial) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// Reel is a short lookbook video, optionally linked to a product.
type Reel struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Title        string     `gorm:"column:title;not null"`
	VideoURL     string     `gorm:"column:video_url;not null"`
	ThumbnailURL *string    `gorm:"column:thumbnail_url"`
	ProductID    *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Active       bool       `gorm:"column:active;not null"`
	SortOrder    int        `gorm:"column:sort_order;not null;default:0"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *Reel) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
