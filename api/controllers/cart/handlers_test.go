package cart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasanarpat/memento-mori/api/middleware"
	cartsvc "github.com/hasanarpat/memento-mori/internal/cart"
	"github.com/hasanarpat/memento-mori/pkg/cartstate"
	"github.com/hasanarpat/memento-mori/pkg/logger"
)

type stubCartService struct {
	userID   uuid.UUID
	replaced []cartstate.Item
	merged   []cartstate.Item
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.userID = userID
	return &cartsvc.CartDTO{Items: []cartsvc.LineDTO{}, Subtotal: decimal.Zero}, nil
}

func (s *stubCartService) Replace(ctx context.Context, userID uuid.UUID, items []cartstate.Item) (*cartsvc.CartDTO, error) {
	s.userID = userID
	s.replaced = items
	return &cartsvc.CartDTO{Items: []cartsvc.LineDTO{}, Subtotal: decimal.Zero}, nil
}

func (s *stubCartService) Merge(ctx context.Context, userID uuid.UUID, local []cartstate.Item) (*cartsvc.CartDTO, error) {
	s.userID = userID
	s.merged = local
	return &cartsvc.CartDTO{Items: []cartsvc.LineDTO{}, Subtotal: decimal.Zero}, nil
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func authed(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestCartFetchRequiresUser(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	CartFetch(&stubCartService{}, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shop/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartReplaceForwardsLines(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{}
	body := `{"items":[{"productId":"` + productID.String() + `","quantity":2,"unitPrice":"13.13"}]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/shop/cart", strings.NewReader(body)), userID)
	rec := httptest.NewRecorder()

	CartReplace(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, userID, svc.userID)
	require.Len(t, svc.replaced, 1)
	assert.Equal(t, productID, svc.replaced[0].ProductID)
	assert.Equal(t, 2, svc.replaced[0].Quantity)
	assert.True(t, svc.replaced[0].UnitPrice.Equal(decimal.RequireFromString("13.13")))
}

func TestCartReplaceRejectsZeroQuantity(t *testing.T) {
	t.Parallel()

	body := `{"items":[{"productId":"` + uuid.NewString() + `","quantity":0}]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/shop/cart", strings.NewReader(body)), uuid.New())
	rec := httptest.NewRecorder()

	CartReplace(&stubCartService{}, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartMergeAcceptsEmptyGuestCart(t *testing.T) {
	t.Parallel()

	svc := &stubCartService{}
	req := authed(httptest.NewRequest(http.MethodPost, "/api/shop/cart/merge", strings.NewReader(`{"items":[]}`)), uuid.New())
	rec := httptest.NewRecorder()

	CartMerge(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.merged)
}
