package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/outbox"
	"github.com/hasanarpat/memento-mori/pkg/outbox/payloads"
	"github.com/hasanarpat/memento-mori/pkg/pagination"
)

// Service exposes account order pages and the admin status lifecycle.
type Service interface {
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, input AdminListInput) (*ListResult, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockRestorer interface {
	RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	stock  stockRestorer
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx txRunner, publisher outboxPublisher, stock stockRestorer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, outbox: publisher, stock: stock, logg: logg, now: time.Now}, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if err := checkTimeCursor(cursor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByUser(ctx, userID, cursor, params.FetchSize())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return buildList(rows, params), nil
}

// GetForUser hides orders owned by someone else behind the same 404 as a
// missing order.
func (s *service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := FromModel(*order)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input AdminListInput) (*ListResult, error) {
	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if input.Filters.PaymentStatus != nil && !input.Filters.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status filter")
	}
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if err := checkTimeCursor(cursor); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, input.Filters, cursor, input.Pagination.FetchSize())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return buildList(rows, input.Pagination), nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*order)
	return &dto, nil
}

// UpdateStatus applies an admin status and/or payment change. Fulfillment
// transitions follow enums.OrderStatus.CanTransitionTo; anything else is a
// STATE_CONFLICT. Stock of a cancelled order is restored after commit.
func (s *service) UpdateStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	if input.Status == nil && input.PaymentStatus == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status or paymentStatus is required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.AdminSettable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentStatus must be paid or refunded")
	}

	now := s.now().UTC()
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}

		if input.Status != nil && *input.Status != order.Status {
			from, to := order.Status, *input.Status
			if !from.CanTransitionTo(to) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to)).
					WithDetails(map[string]string{"from": string(from), "to": string(to)})
			}
			ok, err := repo.TransitionStatus(ctx, order.ID, from, to, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
			}
			if err := s.emitStatusChange(ctx, tx, actor, order.ID, from, to, now, input.Reason); err != nil {
				return err
			}
			if to == enums.OrderStatusCancelled {
				cancelled = order
			}
		}

		if input.PaymentStatus != nil && *input.PaymentStatus != order.PaymentStatus {
			if err := checkPaymentTransition(order.PaymentStatus, *input.PaymentStatus); err != nil {
				return err
			}
			if err := repo.UpdatePaymentStatus(ctx, order.ID, *input.PaymentStatus); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment status")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled != nil {
		s.restoreStock(ctx, cancelled)
	}
	return s.Get(ctx, orderID)
}

func (s *service) emitStatusChange(ctx context.Context, tx *gorm.DB, actor outbox.ActorRef, orderID uuid.UUID, from, to enums.OrderStatus, at time.Time, reason string) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &actor,
		Data:          payloads.OrderStatusChangedEvent{OrderID: orderID, From: from, To: to, ChangedAt: at},
		OccurredAt:    at,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
	}
	if to != enums.OrderStatusCancelled {
		return nil
	}
	event.EventType = enums.EventOrderCancelled
	event.Data = payloads.OrderCancelledEvent{OrderID: orderID, CancelledAt: at, Reason: reason}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled")
	}
	return nil
}

func (s *service) restoreStock(ctx context.Context, order *models.Order) {
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	for _, item := range order.Items {
		if !item.StockDecremented {
			s.logg.Debug(s.logg.WithField(logCtx, "product_id", item.ProductID.String()), "orders.cancel.restore_stock_skipped")
			continue
		}
		if err := s.stock.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logg.Error(s.logg.WithField(logCtx, "product_id", item.ProductID.String()), "orders.cancel.restore_stock_failed", err)
		}
	}
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	return order, nil
}

func checkPaymentTransition(from, to enums.PaymentStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move payment from %s to %s", from, to))
}

func checkTimeCursor(cursor *pagination.Cursor) error {
	if cursor == nil {
		return nil
	}
	if _, err := cursor.Time(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return nil
}

func buildList(rows []models.Order, params pagination.Params) *ListResult {
	rows, next := pagination.Trim(rows, params, func(o models.Order) pagination.Cursor {
		return pagination.TimeCursor(o.CreatedAt, o.ID)
	})
	result := &ListResult{Items: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Items = append(result.Items, FromModel(row))
	}
	return result
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
