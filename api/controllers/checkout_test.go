package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasanarpat/memento-mori/api/middleware"
	checkoutsvc "github.com/hasanarpat/memento-mori/internal/checkout"
	"github.com/hasanarpat/memento-mori/internal/orders"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/logger"
)

type stubCheckoutService struct {
	gotUser  *uuid.UUID
	gotInput checkoutsvc.CreateOrderInput
	err      error
}

func (s *stubCheckoutService) CreateOrder(ctx context.Context, userID *uuid.UUID, input checkoutsvc.CreateOrderInput) (*orders.OrderDTO, error) {
	s.gotUser = userID
	s.gotInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderDTO{
		ID:            uuid.New(),
		OrderNumber:   "MM-20261019-0042",
		Email:         input.Email,
		UserID:        userID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: input.PaymentMethod,
		Total:         decimal.RequireFromString("66.60"),
		Currency:      "USD",
	}, nil
}

func checkoutBody(email string) string {
	return `{
		"items": [{"productId": "` + uuid.NewString() + `", "quantity": 2}],
		"shippingAddress": {
			"fullName": "Morticia Addams",
			"line1": "0001 Cemetery Lane",
			"city": "Westfield",
			"postalCode": "07090",
			"country": "US"
		},
		"paymentMethod": "card",
		"email": "` + email + `"
	}`
}

func TestCheckoutGuestCreatesOrder(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{}
	req := httptest.NewRequest(http.MethodPost, "/api/shop/checkout", strings.NewReader(checkoutBody("guest@example.com")))
	rec := httptest.NewRecorder()

	Checkout(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Nil(t, svc.gotUser)
	assert.Equal(t, "guest@example.com", svc.gotInput.Email)
	require.Len(t, svc.gotInput.Items, 1)
	assert.Equal(t, 2, svc.gotInput.Items[0].Quantity)

	var envelope struct {
		Data orders.OrderDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "MM-20261019-0042", envelope.Data.OrderNumber)
}

func TestCheckoutUserFallsBackToTokenEmail(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &stubCheckoutService{}
	req := httptest.NewRequest(http.MethodPost, "/api/shop/checkout", strings.NewReader(checkoutBody("")))
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithEmail(ctx, "wednesday@example.com")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	Checkout(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.gotUser)
	assert.Equal(t, userID, *svc.gotUser)
	assert.Equal(t, "wednesday@example.com", svc.gotInput.Email)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	body := `{"items": [], "shippingAddress": {"fullName": "A", "line1": "B", "city": "C", "postalCode": "D", "country": "US"}, "paymentMethod": "card"}`
	req := httptest.NewRequest(http.MethodPost, "/api/shop/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()

	Checkout(&stubCheckoutService{}, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutSurfacesStockConflict(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").WithDetails(map[string]any{"productId": "p1"})}
	req := httptest.NewRequest(http.MethodPost, "/api/shop/checkout", strings.NewReader(checkoutBody("guest@example.com")))
	rec := httptest.NewRecorder()

	Checkout(svc, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient stock")
}
