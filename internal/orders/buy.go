package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/internal/inventory"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/payloads"
)

// Buy reserves quantity units of one inventory unit for the buyer. The unit
// lease serializes concurrent buyers; the stock decrement, the order insert
// and the order_created event commit together or not at all.
func (s *service) Buy(ctx context.Context, input BuyInput) (*models.Order, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be a positive integer").
			WithDetails(map[string]any{"quantity": input.Quantity})
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if input.UnitID == uuid.Nil || input.ShopID == uuid.Nil || input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit, shop and address are required")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"unit_id":  input.UnitID.String(),
		"shop_id":  input.ShopID.String(),
		"buyer_id": input.BuyerID.String(),
	})

	lease, err := s.locks.Acquire(ctx, input.UnitID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			s.logg.Error(ctx, "release reservation lease", err)
		}
	}()

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.buyTx(ctx, tx, input)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"quantity":          order.Quantity,
		"total_price_cents": order.TotalPriceCents,
	})
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) buyTx(ctx context.Context, tx *gorm.DB, input BuyInput) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	stock := s.inventory.WithTx(tx)

	unit, err := stock.FindByID(ctx, input.UnitID)
	if err != nil {
		return nil, mapRepoError(err, "load inventory unit")
	}
	if unit.ShopID != input.ShopID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory unit does not belong to shop").
			WithDetails(map[string]any{"unit_id": unit.ID.String(), "shop_id": input.ShopID.String()})
	}
	if unit.Status == enums.InventoryStatusComingSoon {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory unit is not on sale yet").
			WithDetails(map[string]any{"unit_id": unit.ID.String(), "status": unit.Status})
	}

	if input.PaymentID != nil {
		if err := s.checkPayment(ctx, repo, *input.PaymentID, input); err != nil {
			return nil, err
		}
	}

	if input.Quantity > unit.Stock {
		return nil, insufficientStock(unit, input.Quantity)
	}
	ok, err := stock.DecrementStock(ctx, unit.ID, input.Quantity)
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "decrement stock")
	}
	if !ok {
		return nil, insufficientStock(unit, input.Quantity)
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:              uuid.New(),
		BuyerID:         input.BuyerID,
		ShopID:          input.ShopID,
		InventoryUnitID: unit.ID,
		Quantity:        input.Quantity,
		TotalPriceCents: inventory.TotalPriceCents(*unit, input.Quantity),
		AddressID:       input.AddressID,
		PaymentID:       input.PaymentID,
		Status:          enums.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.WrapStore(err, "create order")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.RoleBuyer.String()},
		OccurredAt:    now,
		Data: payloads.OrderCreatedEvent{
			OrderID:         order.ID,
			BuyerID:         order.BuyerID,
			ShopID:          order.ShopID,
			InventoryUnitID: order.InventoryUnitID,
			Quantity:        order.Quantity,
			TotalPriceCents: order.TotalPriceCents,
			PaymentID:       order.PaymentID,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
	}
	return order, nil
}

// checkPayment rejects a payment that belongs to someone else, is already
// decided, or already covers orders of a different shop.
func (s *service) checkPayment(ctx context.Context, repo Repository, paymentID uuid.UUID, input BuyInput) error {
	payment, err := repo.FindPaymentForUpdate(ctx, paymentID)
	if err != nil {
		return mapRepoError(err, "load payment")
	}
	if payment.PayerID != input.BuyerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another buyer")
	}
	if payment.IsVerified != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already decided").
			WithDetails(map[string]any{"payment_id": payment.ID.String(), "verified": *payment.IsVerified})
	}
	shopIDs, err := repo.ShopIDsForPayment(ctx, payment.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment shops")
	}
	for _, shopID := range shopIDs {
		if shopID != input.ShopID {
			return pkgerrors.New(pkgerrors.CodeShopMismatch, "payment already covers orders of another shop").
				WithDetails(map[string]any{"payment_id": payment.ID.String(), "shop_id": shopID.String()})
		}
	}
	return nil
}

func insufficientStock(unit *models.InventoryUnit, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for this unit").
		WithDetails(map[string]any{
			"unit_id":   unit.ID.String(),
			"available": unit.Stock,
			"requested": requested,
		})
}
