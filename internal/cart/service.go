package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/cartstate"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/logger"
)

// MaxLines caps how many distinct products one cart may hold.
const MaxLines = 100

// LineDTO is a cart line with a product snapshot.
type LineDTO struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Name      string          `json:"name,omitempty"`
	Slug      string          `json:"slug,omitempty"`
	Image     *string         `json:"image,omitempty"`
	Stock     int             `json:"stock"`
	Available bool            `json:"available"`
}

// CartDTO is the body of GET/POST /api/shop/cart.
type CartDTO struct {
	Items    []LineDTO       `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Service manages the server-held cart of an authenticated user.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Replace(ctx context.Context, userID uuid.UUID, items []cartstate.Item) (*CartDTO, error)
	Merge(ctx context.Context, userID uuid.UUID, local []cartstate.Item) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
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
	logg     *logger.Logger
}

// NewService wires the cart service.
func NewService(repo Repository, products productLookup, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, products: products, tx: tx, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return s.render(ctx, toCart(rows))
}

func (s *service) Replace(ctx context.Context, userID uuid.UUID, items []cartstate.Item) (*CartDTO, error) {
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
	}
	cart := cartstate.Normalize(items)
	if len(cart.Items) > MaxLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart may hold at most %d products", MaxLines))
	}

	catalog, err := s.products.FindByIDs(ctx, productIDs(cart))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	for i, item := range cart.Items {
		product, ok := catalog[item.ProductID]
		if !ok || !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", item.ProductID))
		}
		cart.Items[i].UnitPrice = product.Price
	}

	if err := s.save(ctx, userID, cart); err != nil {
		return nil, err
	}
	return s.renderWith(cart, catalog), nil
}

// Merge folds a guest cart into the stored one. Local lines whose product no
// longer exists are dropped.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, local []cartstate.Item) (*CartDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	server := toCart(rows)
	guest := cartstate.Normalize(local)

	catalog, err := s.products.FindByIDs(ctx, append(productIDs(server), productIDs(guest)...))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	known := cartstate.Cart{}
	for _, item := range guest.Items {
		product, ok := catalog[item.ProductID]
		if !ok || !product.IsActive {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", item.ProductID.String()), "cart.merge.drop_unknown_product")
			continue
		}
		item.UnitPrice = product.Price
		known.Items = append(known.Items, item)
	}

	merged := cartstate.Merge(known, server)
	if len(merged.Items) > MaxLines {
		merged.Items = merged.Items[:MaxLines]
	}
	if err := s.save(ctx, userID, merged); err != nil {
		return nil, err
	}
	return s.renderWith(merged, catalog), nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) save(ctx context.Context, userID uuid.UUID, cart cartstate.Cart) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).ReplaceAll(ctx, userID, toRows(cart)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart")
		}
		return nil
	})
}

func (s *service) render(ctx context.Context, cart cartstate.Cart) (*CartDTO, error) {
	catalog, err := s.products.FindByIDs(ctx, productIDs(cart))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	return s.renderWith(cart, catalog), nil
}

// renderWith prices available lines at the current catalog price; lines whose
// product vanished keep their stored price but do not count toward the
// subtotal.
func (s *service) renderWith(cart cartstate.Cart, catalog map[uuid.UUID]models.Product) *CartDTO {
	out := &CartDTO{Items: make([]LineDTO, 0, len(cart.Items)), Subtotal: decimal.Zero}
	for _, item := range cart.Items {
		line := LineDTO{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
		if product, ok := catalog[item.ProductID]; ok && product.IsActive {
			line.UnitPrice = product.Price
			line.Name = product.Name
			line.Slug = product.Slug
			line.Stock = product.Stock
			line.Available = product.Stock >= item.Quantity
			if len(product.Images) > 0 {
				img := product.Images[0]
				line.Image = &img
			}
			out.Subtotal = out.Subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
			out.Count += item.Quantity
		}
		out.Items = append(out.Items, line)
	}
	return out
}

func toCart(rows []models.CartItem) cartstate.Cart {
	items := make([]cartstate.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, cartstate.Item{ProductID: row.ProductID, Quantity: row.Quantity, UnitPrice: row.UnitPrice})
	}
	return cartstate.Normalize(items)
}

func toRows(cart cartstate.Cart) []models.CartItem {
	rows := make([]models.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		rows = append(rows, models.CartItem{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return rows
}

func productIDs(cart cartstate.Cart) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
