package wishlist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/cartstate"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
)

// MaxItems caps the wishlist size.
const MaxItems = 200

// ItemDTO is a wishlist entry with a product snapshot.
type ItemDTO struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Price     decimal.Decimal `json:"price"`
	Image     *string         `json:"image,omitempty"`
	InStock   bool            `json:"inStock"`
}

// WishlistDTO is the body of GET/POST /api/shop/wishlist.
type WishlistDTO struct {
	ProductIDs []uuid.UUID `json:"productIds"`
	Items      []ItemDTO   `json:"items"`
}

type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*WishlistDTO, error)
	Replace(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (*WishlistDTO, error)
	Add(ctx context.Context, userID, productID uuid.UUID) (*WishlistDTO, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*WishlistDTO, error)
	Merge(ctx context.Context, userID uuid.UUID, local []uuid.UUID) (*WishlistDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type service struct {
	repo     Repository
	products productLookup
	tx       txRunner
}

func NewService(repo Repository, products productLookup, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wishlist repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: products, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*WishlistDTO, error) {
	ids, err := s.repo.ListProductIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wishlist")
	}
	return s.render(ctx, cartstate.NewWishlist(ids...))
}

func (s *service) Replace(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (*WishlistDTO, error) {
	list := cartstate.NewWishlist(productIDs...)
	if list.Len() > MaxItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("wishlist may hold at most %d products", MaxItems))
	}
	if err := s.requireProducts(ctx, list.IDs()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, userID, list); err != nil {
		return nil, err
	}
	return s.render(ctx, list)
}

func (s *service) Add(ctx context.Context, userID, productID uuid.UUID) (*WishlistDTO, error) {
	if err := s.requireProducts(ctx, []uuid.UUID{productID}); err != nil {
		return nil, err
	}
	if err := s.repo.Add(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add to wishlist")
	}
	return s.Get(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) (*WishlistDTO, error) {
	if _, err := s.repo.Remove(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove from wishlist")
	}
	return s.Get(ctx, userID)
}

// Merge unions a guest wishlist into the stored one, server entries first.
// Unknown products from the guest list are dropped.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, local []uuid.UUID) (*WishlistDTO, error) {
	stored, err := s.repo.ListProductIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wishlist")
	}
	guest := cartstate.NewWishlist(local...)
	catalog, err := s.products.FindByIDs(ctx, guest.IDs())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	known := cartstate.NewWishlist()
	for _, id := range guest.IDs() {
		if product, ok := catalog[id]; ok && product.IsActive {
			known.Add(id)
		}
	}

	merged := cartstate.MergeWishlists(known, cartstate.NewWishlist(stored...))
	if merged.Len() > MaxItems {
		merged = cartstate.NewWishlist(merged.IDs()[:MaxItems]...)
	}
	if err := s.save(ctx, userID, merged); err != nil {
		return nil, err
	}
	return s.render(ctx, merged)
}

func (s *service) requireProducts(ctx context.Context, ids []uuid.UUID) error {
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	for _, id := range ids {
		if product, ok := catalog[id]; !ok || !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
	}
	return nil
}

func (s *service) save(ctx context.Context, userID uuid.UUID, list cartstate.Wishlist) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).ReplaceAll(ctx, userID, list.IDs()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save wishlist")
		}
		return nil
	})
}

// render keeps every stored ID in ProductIDs so clients can reconcile, but
// only lists products that are still active in Items.
func (s *service) render(ctx context.Context, list cartstate.Wishlist) (*WishlistDTO, error) {
	ids := list.IDs()
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	out := &WishlistDTO{ProductIDs: ids, Items: make([]ItemDTO, 0, len(ids))}
	for _, id := range ids {
		product, ok := catalog[id]
		if !ok || !product.IsActive {
			continue
		}
		item := ItemDTO{
			ProductID: id,
			Name:      product.Name,
			Slug:      product.Slug,
			Price:     product.Price,
			InStock:   product.Stock > 0,
		}
		if len(product.Images) > 0 {
			img := product.Images[0]
			item.Image = &img
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
