package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/internal/inventory"
	"github.com/KalilovM/topshopes-backend/internal/reservation"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/payloads"
	"github.com/KalilovM/topshopes-backend/pkg/pagination"
)

const (
	defaultLockTimeout = 3 * time.Second
	defaultGracePeriod = 72 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SettlementScheduler arms the deferred settlement of a delivered order
// inside the caller's transaction.
type SettlementScheduler interface {
	Schedule(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, delay time.Duration) (time.Time, error)
}

// Service exposes the buy path and the order state machine.
type Service interface {
	Buy(ctx context.Context, input BuyInput) (*models.Order, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor Actor, status *enums.OrderStatus, params pagination.Params) (*OrderList, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repository  Repository
	Inventory   inventory.Repository
	TxRunner    txRunner
	Outbox      outboxPublisher
	Locks       reservation.Manager
	Scheduler   SettlementScheduler
	Logger      *logger.Logger
	LockTimeout time.Duration
	GracePeriod time.Duration
	Now         func() time.Time
}

type service struct {
	repo        Repository
	inventory   inventory.Repository
	tx          txRunner
	outbox      outboxPublisher
	locks       reservation.Manager
	scheduler   SettlementScheduler
	logg        *logger.Logger
	lockTimeout time.Duration
	gracePeriod time.Duration
	now         func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("settlement scheduler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	lockTimeout := params.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	grace := params.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repository,
		inventory:   params.Inventory,
		tx:          params.TxRunner,
		outbox:      params.Outbox,
		locks:       params.Locks,
		scheduler:   params.Scheduler,
		logg:        params.Logger,
		lockTimeout: lockTimeout,
		gracePeriod: grace,
		now:         now,
	}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapRepoError(err, "load order")
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// List returns the buyer's own orders, or the seller's shop orders.
func (s *service) List(ctx context.Context, actor Actor, status *enums.OrderStatus, params pagination.Params) (*OrderList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	filters := ListFilters{Status: status}
	switch actor.Role {
	case enums.RoleBuyer:
		buyerID := actor.UserID
		filters.BuyerID = &buyerID
	case enums.RoleSeller:
		if actor.ShopID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
		}
		filters.ShopID = actor.ShopID
	case enums.RoleAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
	}

	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// Transition applies a shop-side fulfillment change. Delivered arms settlement
// in the same transaction.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsShopTransition() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status cannot be requested directly").
			WithDetails(map[string]any{"status": input.Target})
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return mapRepoError(err, "load order")
		}
		if !input.Actor.IsAdmin() && !input.Actor.ownsShop(order.ShopID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another shop")
		}
		if !order.Status.CanTransition(input.Target) {
			return stateConflict(order.Status, input.Target)
		}

		now := s.now().UTC()
		extra := map[string]any{}
		if input.Target == enums.OrderStatusDelivered {
			extra["delivered_at"] = now
		}
		ok, err := repo.UpdateStatus(ctx, order.ID, order.Status, input.Target, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return stateConflict(order.Status, input.Target)
		}

		from := order.Status
		order.Status = input.Target
		order.UpdatedAt = now

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor.Ref(),
			OccurredAt:    now,
			Data: payloads.OrderStateChangedEvent{
				OrderID: order.ID,
				ShopID:  order.ShopID,
				From:    from,
				To:      input.Target,
			},
		}
		if input.Target == enums.OrderStatusDelivered {
			order.DeliveredAt = &now
			settleAt, err := s.scheduler.Schedule(ctx, tx, order.ID, s.gracePeriod)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule settlement")
			}
			event.EventType = enums.EventOrderDelivered
			event.Data = payloads.OrderDeliveredEvent{
				OrderID:     order.ID,
				ShopID:      order.ShopID,
				DeliveredAt: now,
				SettleAt:    settleAt,
			}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": updated.ID.String(),
		"shop_id":  updated.ShopID.String(),
		"status":   updated.Status,
	})
	s.logg.Info(logCtx, "order status updated")
	return updated, nil
}

// Cancel moves a pre-delivery order to canceled. Stock is not returned.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var canceled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return mapRepoError(err, "load order")
		}
		if !input.Actor.IsAdmin() && order.BuyerID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.CanTransition(enums.OrderStatusCanceled) {
			return stateConflict(order.Status, enums.OrderStatusCanceled)
		}

		now := s.now().UTC()
		from := order.Status
		ok, err := repo.UpdateStatus(ctx, order.ID, from, enums.OrderStatusCanceled, map[string]any{"canceled_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return stateConflict(from, enums.OrderStatusCanceled)
		}
		order.Status = enums.OrderStatusCanceled
		order.CanceledAt = &now
		order.UpdatedAt = now

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor.Ref(),
			OccurredAt:    now,
			Data: payloads.OrderCanceledEvent{
				OrderID:    order.ID,
				ShopID:     order.ShopID,
				BuyerID:    order.BuyerID,
				From:       from,
				CanceledAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order canceled")
		}
		canceled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, canceled.ID.String()), "order canceled")
	return canceled, nil
}

func canView(actor Actor, order *models.Order) bool {
	switch actor.Role {
	case enums.RoleAdmin:
		return true
	case enums.RoleBuyer:
		return order.BuyerID == actor.UserID
	case enums.RoleSeller:
		return actor.ownsShop(order.ShopID)
	}
	return false
}

func stateConflict(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot move to the requested status").
		WithDetails(map[string]any{"from": from, "to": to})
}

func mapRepoError(err error, action string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	case errors.Is(err, ErrPaymentNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	case errors.Is(err, inventory.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory unit not found")
	}
	return pkgerrors.WrapStore(err, action)
}
