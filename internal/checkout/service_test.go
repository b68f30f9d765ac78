package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/internal/cart"
	"github.com/hasanarpat/memento-mori/internal/coupons"
	"github.com/hasanarpat/memento-mori/internal/orders"
	"github.com/hasanarpat/memento-mori/internal/products"
	"github.com/hasanarpat/memento-mori/pkg/cartstate"
	"github.com/hasanarpat/memento-mori/pkg/config"
	"github.com/hasanarpat/memento-mori/pkg/db"
	"github.com/hasanarpat/memento-mori/pkg/db/dbtest"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/mailer"
	"github.com/hasanarpat/memento-mori/pkg/metrics"
	"github.com/hasanarpat/memento-mori/pkg/outbox"
	"github.com/hasanarpat/memento-mori/pkg/types"
)

type stubMailer struct {
	mu   sync.Mutex
	err  error
	sent []mailer.OrderConfirmation
}

func (m *stubMailer) SendOrderConfirmation(_ context.Context, msg mailer.OrderConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *stubMailer) SendVerification(context.Context, string, string, string) error {
	return nil
}

type fixture struct {
	svc     Service
	conn    *gorm.DB
	cart    cart.Service
	mail    *stubMailer
	metrics *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.FromConn(conn)
	reg := prometheus.NewRegistry()
	shop := metrics.NewShopMetrics(reg)
	productRepo := products.NewRepository(conn)

	couponSvc, err := coupons.NewService(coupons.NewRepository(conn), shop)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(conn), productRepo, client, nil)
	require.NoError(t, err)
	mail := &stubMailer{}

	svc, err := NewService(Deps{
		Tx:       client,
		Orders:   orders.NewRepository(conn),
		Products: productRepo,
		Coupons:  couponSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Cart:     cartSvc,
		Mailer:   mail,
		Metrics:  shop,
		Shop:     config.ShopConfig{Currency: "usd"},
	})
	require.NoError(t, err)
	return &fixture{svc: svc, conn: conn, cart: cartSvc, mail: mail, metrics: reg}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func address() types.ShippingAddress {
	return types.ShippingAddress{FullName: "Morticia A.", Line1: "0001 Cemetery Ln", City: "Westfield", PostalCode: "07090", Country: "us"}
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) counter(t *testing.T, name, label, value string) float64 {
	t.Helper()
	mfs, err := f.metrics.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, pair := range m.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCreateOrderUsesServerPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.MustCreateProduct(t, f.conn, "Widow Dress", "120.00", 5)
	b := dbtest.MustCreateProduct(t, f.conn, "Bone Choker", "15.50", 10)
	lie := dec("0.01")

	got, err := f.svc.CreateOrder(ctx, nil, CreateOrderInput{
		Items: []LineInput{
			{ProductID: a.ID, Quantity: 1, Price: &lie},
			{ProductID: b.ID, Quantity: 2, Price: &lie},
			{ProductID: a.ID, Quantity: 1, Price: &lie},
		},
		ShippingAddress: address(),
		PaymentMethod:   enums.PaymentMethodCard,
		Email:           " Guest@Example.com ",
	})
	require.NoError(t, err)

	assert.True(t, got.Subtotal.Equal(dec("271")), "subtotal %s", got.Subtotal)
	assert.True(t, got.Total.Equal(dec("271")), "total %s", got.Total)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "guest@example.com", got.Email)
	assert.Equal(t, "US", got.ShippingAddress.Country)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 2, got.Items[0].Quantity)

	var stored models.Order
	require.NoError(t, f.conn.Preload("Items").First(&stored, "id = ?", got.ID).Error)
	sum := decimal.Zero
	for _, item := range stored.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, stored.Total.Equal(sum.Sub(stored.Discount)))
	assert.Regexp(t, `^MM-\d{8}-[0-9A-Z]{6}$`, stored.OrderNumber)

	var reloaded models.Product
	require.NoError(t, f.conn.First(&reloaded, "id = ?", a.ID).Error)
	assert.Equal(t, 3, reloaded.Stock)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	assert.Equal(t, int64(1), events)
	assert.Len(t, f.mail.sent, 1)
	assert.Equal(t, float64(1), f.counter(t, "memento_orders_created_total", "", ""))
}

func TestCreateOrderRejectsOverStockWithoutPartialOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.MustCreateProduct(t, f.conn, "Plenty", "10.00", 10)
	b := dbtest.MustCreateProduct(t, f.conn, "Last One", "10.00", 1)

	_, err := f.svc.CreateOrder(ctx, nil, CreateOrderInput{
		Items:           []LineInput{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 2}},
		ShippingAddress: address(),
		PaymentMethod:   enums.PaymentMethodPayPal,
		Email:           "guest@example.com",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "insufficient stock for Last One")

	assert.Equal(t, int64(0), f.countRows(t, &models.Order{}))
	assert.Equal(t, int64(0), f.countRows(t, &models.OrderItem{}))
	assert.Equal(t, int64(0), f.countRows(t, &models.OutboxEvent{}))
	assert.Equal(t, float64(1), f.counter(t, "memento_checkout_rejected_total", "code", string(pkgerrors.CodeValidation)))
}

func TestCreateOrderProductFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	retired := &models.Product{Name: "Retired", Slug: "retired", Price: dec("5"), Stock: 3}
	dbtest.MustCreate(t, f.conn, retired)
	require.NoError(t, f.conn.Model(retired).Update("is_active", false).Error)
	missing := uuid.New()

	_, err := f.svc.CreateOrder(ctx, nil, CreateOrderInput{
		Items: []LineInput{{ProductID: missing, Quantity: 1}}, ShippingAddress: address(),
		PaymentMethod: enums.PaymentMethodCard, Email: "guest@example.com",
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	assert.Contains(t, err.Error(), missing.String())

	_, err = f.svc.CreateOrder(ctx, nil, CreateOrderInput{
		Items: []LineInput{{ProductID: retired.ID, Quantity: 1}}, ShippingAddress: address(),
		PaymentMethod: enums.PaymentMethodCard, Email: "guest@example.com",
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateOrder(ctx, nil, CreateOrderInput{
		ShippingAddress: address(), PaymentMethod: enums.PaymentMethodCard, Email: "guest@example.com",
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Equal(t, int64(0), f.countRows(t, &models.Order{}))
}

func TestCreateOrderAppliesCouponAndRecordsUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := dbtest.MustCreateUser(t, f.conn)
	p := dbtest.MustCreateProduct(t, f.conn, "Mourning Cape", "100.00", 5)
	dbtest.MustCreate(t, f.conn, &models.Coupon{Code: "WELCOME10", DiscountType: enums.DiscountTypePercentage, DiscountValue: dec("10"), Active: true})

	_, err := f.cart.Replace(ctx, user.ID, []cartstate.Item{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	code := "welcome10"
	got, err := f.svc.CreateOrder(ctx, &user.ID, CreateOrderInput{
		Items:           []LineInput{{ProductID: p.ID, Quantity: 2}},
		ShippingAddress: address(),
		PaymentMethod:   enums.PaymentMethodBankTransfer,
		CouponCode:      &code,
		Email:           user.Email,
	})
	require.NoError(t, err)
	assert.True(t, got.Discount.Equal(dec("20")))
	assert.True(t, got.Total.Equal(dec("180")))
	require.NotNil(t, got.CouponCode)
	assert.Equal(t, "WELCOME10", *got.CouponCode)
	require.NotNil(t, got.UserID)

	var coupon models.Coupon
	require.NoError(t, f.conn.First(&coupon, "code = ?", "WELCOME10").Error)
	assert.Equal(t, 1, coupon.UsageCount)

	remaining, err := f.cart.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining.Items)
}

func TestCreateOrderRejectsExhaustedCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustCreateProduct(t, f.conn, "Lantern", "30.00", 5)
	maxUses := 1
	dbtest.MustCreate(t, f.conn, &models.Coupon{Code: "ONCE", DiscountType: enums.DiscountTypeFixed, DiscountValue: dec("5"), MaxUses: &maxUses, UsageCount: 1, Active: true})

	code := "ONCE"
	_, err := f.svc.CreateOrder(ctx, nil, CreateOrderInput{
		Items: []LineInput{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: address(),
		PaymentMethod: enums.PaymentMethodCard, CouponCode: &code, Email: "guest@example.com",
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Equal(t, int64(0), f.countRows(t, &models.Order{}))

	var reloaded models.Product
	require.NoError(t, f.conn.First(&reloaded, "id = ?", p.ID).Error)
	assert.Equal(t, 5, reloaded.Stock)
}

func TestCreateOrderSucceedsWhenMailFails(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errors.New("smtp down")
	p := dbtest.MustCreateProduct(t, f.conn, "Candle", "8.00", 2)

	got, err := f.svc.CreateOrder(context.Background(), nil, CreateOrderInput{
		Items: []LineInput{{ProductID: p.ID, Quantity: 2}}, ShippingAddress: address(),
		PaymentMethod: enums.PaymentMethodCashOnDelivery, Email: "guest@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
	assert.Equal(t, enums.PaymentStatusPending, got.PaymentStatus)
	assert.Len(t, f.mail.sent, 1)
	assert.Equal(t, int64(1), f.countRows(t, &models.Order{}))
}

// txBoundProducts records the handles the catalog was read through.
type txBoundProducts struct {
	products.Repository
	bound []*gorm.DB
}

func (p *txBoundProducts) WithTx(tx *gorm.DB) products.Repository {
	p.bound = append(p.bound, tx)
	return p.Repository.WithTx(tx)
}

func TestCreateOrderReadsCatalogInsideTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	catalog := &txBoundProducts{Repository: products.NewRepository(conn)}

	svc, err := NewService(Deps{
		Tx:       db.FromConn(conn),
		Orders:   orders.NewRepository(conn),
		Products: catalog,
		Coupons:  mustCoupons(t, conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Shop:     config.ShopConfig{Currency: "usd"},
	})
	require.NoError(t, err)

	shroud := dbtest.MustCreateProduct(t, conn, "Linen Shroud", "44.00", 3)
	_, err = svc.CreateOrder(context.Background(), nil, CreateOrderInput{
		Items:           []LineInput{{ProductID: shroud.ID, Quantity: 1}},
		ShippingAddress: address(),
		PaymentMethod:   enums.PaymentMethodCard,
		Email:           "mourner@example.com",
	})
	require.NoError(t, err)

	require.Len(t, catalog.bound, 1)
	assert.NotNil(t, catalog.bound[0])
	assert.NotSame(t, conn, catalog.bound[0])
}

// drainingProducts empties the product's stock just before checkout takes
// it, like a concurrent order winning the race.
type drainingProducts struct {
	products.Repository
	conn *gorm.DB
}

func (p drainingProducts) WithTx(tx *gorm.DB) products.Repository {
	return drainingProducts{Repository: p.Repository.WithTx(tx), conn: tx}
}

func (p drainingProducts) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	if err := p.conn.Model(&models.Product{}).Where("id = ?", id).UpdateColumn("stock", 0).Error; err != nil {
		return false, err
	}
	return p.Repository.DecrementStock(ctx, id, qty)
}

func TestCreateOrderMarksOnlyDecrementedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	urn := dbtest.MustCreateProduct(t, f.conn, "Brass Urn", "80.00", 4)

	got, err := f.svc.CreateOrder(ctx, nil, CreateOrderInput{
		Items: []LineInput{{ProductID: urn.ID, Quantity: 2}}, ShippingAddress: address(),
		PaymentMethod: enums.PaymentMethodCard, Email: "guest@example.com",
	})
	require.NoError(t, err)
	var marked models.OrderItem
	require.NoError(t, f.conn.First(&marked, "order_id = ?", got.ID).Error)
	assert.True(t, marked.StockDecremented)

	conn := f.conn
	racing, err := NewService(Deps{
		Tx:       db.FromConn(conn),
		Orders:   orders.NewRepository(conn),
		Products: drainingProducts{Repository: products.NewRepository(conn), conn: conn},
		Coupons:  mustCoupons(t, conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Shop:     config.ShopConfig{Currency: "usd"},
	})
	require.NoError(t, err)

	raced, err := racing.CreateOrder(ctx, nil, CreateOrderInput{
		Items: []LineInput{{ProductID: urn.ID, Quantity: 1}}, ShippingAddress: address(),
		PaymentMethod: enums.PaymentMethodCard, Email: "guest@example.com",
	})
	require.NoError(t, err, "a lost stock race never fails the order")
	var unmarked models.OrderItem
	require.NoError(t, f.conn.First(&unmarked, "order_id = ?", raced.ID).Error)
	assert.False(t, unmarked.StockDecremented)
}

func mustCoupons(t *testing.T, conn *gorm.DB) coupons.Service {
	t.Helper()
	svc, err := coupons.NewService(coupons.NewRepository(conn), metrics.NewShopMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	return svc
}
