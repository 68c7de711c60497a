// Package settlement turns delivered orders into payouts once the grace period
// has passed.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/internal/inventory"
	"github.com/KalilovM/topshopes-backend/internal/orders"
	"github.com/KalilovM/topshopes-backend/internal/payouts"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Scheduler arms settlement tasks. It satisfies orders.SettlementScheduler.
type Scheduler struct {
	repo Repository
	now  func() time.Time
}

func NewScheduler(repo Repository) (*Scheduler, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	return &Scheduler{repo: repo, now: time.Now}, nil
}

// Schedule inserts or re-arms the task for orderID inside tx and returns the
// time it becomes due.
func (s *Scheduler) Schedule(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, delay time.Duration) (time.Time, error) {
	if tx == nil {
		return time.Time{}, errors.New("transaction required")
	}
	runAt := s.now().UTC().Add(delay)
	if err := s.repo.WithTx(tx).Upsert(ctx, orderID, runAt); err != nil {
		return time.Time{}, err
	}
	return runAt, nil
}

// Result reports what one settlement run did.
type Result struct {
	Settled bool
	Payout  *models.Payout
}

// Settler completes a delivered order and records its payout.
type Settler interface {
	Settle(ctx context.Context, orderID uuid.UUID) (*Result, error)
}

type ServiceParams struct {
	Tasks     Repository
	Orders    orders.Repository
	Inventory inventory.Repository
	Payouts   payouts.Repository
	TxRunner  txRunner
	Outbox    outboxPublisher
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	tasks     Repository
	orders    orders.Repository
	inventory inventory.Repository
	payouts   payouts.Repository
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Settler, error) {
	if params.Tasks == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tasks:     params.Tasks,
		orders:    params.Orders,
		inventory: params.Inventory,
		payouts:   params.Payouts,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Settle moves a delivered order to completed and writes its payout. Only the
// run that wins the conditional status update writes anything, so repeated or
// concurrent runs for the same order are no-ops.
func (s *service) Settle(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	result := &Result{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		tasks := s.tasks.WithTx(tx)
		now := s.now().UTC()

		won, err := orderRepo.UpdateStatus(ctx, orderID, enums.OrderStatusDelivered, enums.OrderStatusCompleted, map[string]any{"completed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		order, err := orderRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !won {
			if order.Status == enums.OrderStatusCompleted {
				return tasks.MarkCompleted(ctx, orderID, now)
			}
			return nil
		}

		unit, err := s.inventory.WithTx(tx).FindByID(ctx, order.InventoryUnitID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory unit")
		}

		payout := &models.Payout{
			ID:          uuid.New(),
			OrderID:     order.ID,
			PaymentID:   order.PaymentID,
			ShopID:      order.ShopID,
			AmountCents: order.TotalPriceCents,
			TaxCents:    inventory.TaxPriceCents(*unit) * int64(order.Quantity),
		}
		if err := s.payouts.WithTx(tx).Create(ctx, payout); err != nil {
			if errors.Is(err, payouts.ErrAlreadyRecorded) {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout")
		}

		events := []outbox.DomainEvent{
			{
				EventType:     enums.EventOrderCompleted,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				OccurredAt:    now,
				Data: payloads.OrderCompletedEvent{
					OrderID:     order.ID,
					ShopID:      order.ShopID,
					PayoutID:    payout.ID,
					CompletedAt: now,
				},
			},
			{
				EventType:     enums.EventPayoutRecorded,
				AggregateType: enums.AggregatePayout,
				AggregateID:   payout.ID,
				OccurredAt:    now,
				Data: payloads.PayoutRecordedEvent{
					PayoutID:    payout.ID,
					OrderID:     order.ID,
					ShopID:      order.ShopID,
					PaymentID:   payout.PaymentID,
					AmountCents: payout.AmountCents,
					TaxCents:    payout.TaxCents,
				},
			},
		}
		for _, event := range events {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement event")
			}
		}
		if err := tasks.MarkCompleted(ctx, orderID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete settlement task")
		}

		result.Settled = true
		result.Payout = payout
		return nil
	})
	if errors.Is(err, payouts.ErrAlreadyRecorded) {
		// the failed insert aborted the transaction, so the task is closed on its own
		if err := s.tasks.MarkCompleted(ctx, orderID, s.now().UTC()); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete settlement task")
		}
		s.logg.Warn(ctx, "payout already recorded for order, settlement task closed")
		return &Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.Settled {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payout_id":    result.Payout.ID.String(),
			"amount_cents": result.Payout.AmountCents,
			"tax_cents":    result.Payout.TaxCents,
		})
		s.logg.Info(logCtx, "order settled")
	} else {
		s.logg.Info(ctx, "settlement skipped, order not delivered")
	}
	return result, nil
}
