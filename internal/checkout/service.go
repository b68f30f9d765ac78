package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/internal/checkout/helpers"
	"github.com/hasanarpat/memento-mori/internal/coupons"
	"github.com/hasanarpat/memento-mori/internal/orders"
	"github.com/hasanarpat/memento-mori/internal/products"
	pkgcheckout "github.com/hasanarpat/memento-mori/pkg/checkout"
	"github.com/hasanarpat/memento-mori/pkg/config"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/mailer"
	"github.com/hasanarpat/memento-mori/pkg/metrics"
	"github.com/hasanarpat/memento-mori/pkg/outbox"
	"github.com/hasanarpat/memento-mori/pkg/outbox/payloads"
	"github.com/hasanarpat/memento-mori/pkg/types"
)

const orderNumberAttempts = 5

// Service converts a submitted cart into a persisted order.
type Service interface {
	CreateOrder(ctx context.Context, userID *uuid.UUID, input CreateOrderInput) (*orders.OrderDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productStore interface {
	WithTx(tx *gorm.DB) products.Repository
}

type couponRedeemer interface {
	ValidateTx(ctx context.Context, tx *gorm.DB, code string, orderAmount decimal.Decimal, userID *uuid.UUID) (*coupons.Accepted, error)
	RecordUsage(ctx context.Context, tx *gorm.DB, code string) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

// Deps groups the collaborators of the checkout service. Cart, Mailer and
// Metrics are optional.
type Deps struct {
	Tx       txRunner
	Orders   orders.Repository
	Products productStore
	Coupons  couponRedeemer
	Outbox   outboxPublisher
	Cart     cartClearer
	Mailer   mailer.Mailer
	Metrics  *metrics.ShopMetrics
	Logger   *logger.Logger
	Shop     config.ShopConfig
}

type service struct {
	tx       txRunner
	orders   orders.Repository
	products productStore
	coupons  couponRedeemer
	outbox   outboxPublisher
	cart     cartClearer
	mail     mailer.Mailer
	metrics  *metrics.ShopMetrics
	logg     *logger.Logger
	currency string
	now      func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Products == nil {
		return nil, fmt.Errorf("product store required")
	}
	if deps.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Shop.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &service{
		tx:       deps.Tx,
		orders:   deps.Orders,
		products: deps.Products,
		coupons:  deps.Coupons,
		outbox:   deps.Outbox,
		cart:     deps.Cart,
		mail:     deps.Mailer,
		metrics:  deps.Metrics,
		logg:     logg,
		currency: currency,
		now:      time.Now,
	}, nil
}

// CreateOrder prices every line from the catalog, validates the coupon against
// the server subtotal and writes the order, its items, the coupon usage and
// the order_created event in one transaction. Stock, cart, mail and metrics
// follow after commit and never fail the order.
func (s *service) CreateOrder(ctx context.Context, userID *uuid.UUID, input CreateOrderInput) (*orders.OrderDTO, error) {
	order, lines, err := s.createOrder(ctx, userID, input)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncCheckoutRejected(string(typed.Code()))
		} else {
			s.metrics.IncCheckoutRejected(string(pkgerrors.CodeInternal))
		}
		return nil, err
	}
	s.metrics.IncOrderCreated()

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "order_number", order.OrderNumber), "checkout.order_created")
	s.afterCommit(logCtx, userID, order, lines)

	dto := orders.FromModel(*order)
	return &dto, nil
}

func (s *service) createOrder(ctx context.Context, userID *uuid.UUID, input CreateOrderInput) (*models.Order, []helpers.PricedLine, error) {
	email, address, requested, err := normalizeInput(input)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uuid.UUID, 0, len(requested))
	for _, line := range requested {
		ids = append(ids, line.ProductID)
	}

	var (
		order *models.Order
		lines []helpers.PricedLine
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// Prices and stock are read on the same transaction that writes the order.
		catalog, err := s.products.WithTx(tx).FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
		}
		lines, err = helpers.ResolveLines(requested, catalog)
		if err != nil {
			return err
		}
		subtotal := helpers.Subtotal(lines)
		order = &models.Order{
			UserID:          userID,
			Email:           email,
			Subtotal:        subtotal,
			Discount:        decimal.Zero,
			Total:           subtotal,
			Currency:        s.currency,
			ShippingAddress: address,
			PaymentMethod:   input.PaymentMethod,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			Items:           helpers.OrderItems(lines),
		}

		if code := couponCode(input.CouponCode); code != "" {
			accepted, err := s.coupons.ValidateTx(ctx, tx, code, subtotal, userID)
			if err != nil {
				return err
			}
			order.Discount = accepted.Discount
			order.Total = accepted.FinalTotal
			order.CouponCode = &accepted.Code
			if err := s.coupons.RecordUsage(ctx, tx, accepted.Code); err != nil {
				return err
			}
		}

		repo := s.orders.WithTx(tx)
		number, err := s.uniqueOrderNumber(ctx, repo)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		var actor *outbox.ActorRef
		if userID != nil {
			actor = &outbox.ActorRef{UserID: *userID, Role: string(enums.RoleCustomer)}
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data:          orderCreatedPayload(order),
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, lines, nil
}

func (s *service) uniqueOrderNumber(ctx context.Context, repo orders.Repository) (string, error) {
	for range orderNumberAttempts {
		number, err := helpers.NewOrderNumber(s.now())
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		exists, err := repo.OrderNumberExists(ctx, number)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check order number")
		}
		if !exists {
			return number, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate order number")
}

func (s *service) afterCommit(ctx context.Context, userID *uuid.UUID, order *models.Order, lines []helpers.PricedLine) {
	for _, item := range order.Items {
		lineCtx := s.logg.WithField(ctx, "product_id", item.ProductID.String())
		ok, err := s.decrementStock(ctx, item)
		if err != nil {
			s.logg.Error(lineCtx, "checkout.stock_decrement_failed", err)
			continue
		}
		if !ok {
			s.logg.Warn(lineCtx, "checkout.stock_decrement_skipped")
		}
	}

	if userID != nil && s.cart != nil {
		if err := s.cart.Clear(ctx, *userID); err != nil {
			s.logg.Error(ctx, "checkout.cart_clear_failed", err)
		}
	}

	if s.mail != nil {
		if err := s.mail.SendOrderConfirmation(ctx, confirmation(order, lines)); err != nil {
			s.logg.Error(ctx, "checkout.confirmation_mail_failed", err)
		}
	}
}

// decrementStock takes the line out of stock and marks the order item in one
// transaction, so a cancel restores exactly what was taken.
func (s *service) decrementStock(ctx context.Context, item models.OrderItem) (bool, error) {
	var taken bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		taken, err = s.products.WithTx(tx).DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil || !taken {
			return err
		}
		return s.orders.WithTx(tx).MarkStockDecremented(ctx, item.ID)
	})
	if err != nil {
		return false, err
	}
	return taken, nil
}

// normalizeInput checks the request shape and folds duplicate lines.
func normalizeInput(input CreateOrderInput) (string, types.ShippingAddress, []pkgcheckout.Line, error) {
	if len(input.Items) == 0 {
		return "", types.ShippingAddress{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	lines := make([]pkgcheckout.Line, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return "", types.ShippingAddress{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
		}
		if item.Quantity < 1 {
			return "", types.ShippingAddress{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		lines = append(lines, pkgcheckout.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if !input.PaymentMethod.IsValid() {
		return "", types.ShippingAddress{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return "", types.ShippingAddress{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	address := input.ShippingAddress.Normalize()
	if address.FullName == "" || address.Line1 == "" || address.City == "" || address.PostalCode == "" || len(address.Country) != 2 {
		return "", types.ShippingAddress{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete")
	}
	return email, address, pkgcheckout.MergeLines(lines), nil
}

func couponCode(code *string) string {
	if code == nil {
		return ""
	}
	return strings.TrimSpace(*code)
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	event := payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Email:       order.Email,
		Subtotal:    order.Subtotal.StringFixed(2),
		Discount:    order.Discount.StringFixed(2),
		Total:       order.Total.StringFixed(2),
		Currency:    order.Currency,
		CouponCode:  order.CouponCode,
		Payment:     order.PaymentMethod,
		Items:       make([]payloads.OrderLine, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, payloads.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}
	return event
}

func confirmation(order *models.Order, lines []helpers.PricedLine) mailer.OrderConfirmation {
	msg := mailer.OrderConfirmation{
		To:          order.Email,
		Name:        order.ShippingAddress.FullName,
		OrderNumber: order.OrderNumber,
		Currency:    order.Currency,
		Subtotal:    order.Subtotal.StringFixed(2),
		Discount:    order.Discount.StringFixed(2),
		Total:       order.Total.StringFixed(2),
		Items:       make([]mailer.OrderLine, 0, len(lines)),
	}
	for _, line := range lines {
		msg.Items = append(msg.Items, mailer.OrderLine{
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}
	return msg
}
