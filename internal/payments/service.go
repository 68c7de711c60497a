package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/internal/orders"
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

// Service handles payment intake, order assignment and the gateway decision.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Payment, error)
	Assign(ctx context.Context, input AssignInput) (*AssignResult, error)
	Decide(ctx context.Context, input DecisionInput) (*DecisionResult, error)
}

type CreateInput struct {
	PayerID     uuid.UUID
	Method      enums.PaymentMethod
	ProofRef    string
	PhoneNumber string
	BankAccount string
}

// AssignInput links pending orders of one shop to a buyer's payment.
type AssignInput struct {
	PaymentID uuid.UUID
	BuyerID   uuid.UUID
	OrderIDs  []uuid.UUID
}

type AssignResult struct {
	Payment *models.Payment `json:"payment"`
	Orders  []models.Order  `json:"orders"`
}

// DecisionInput carries a verify/reject decision. Actor is nil when the
// decision arrives through the gateway callback.
type DecisionInput struct {
	PaymentID uuid.UUID
	Verified  bool
	Actor     *orders.Actor
}

type DecisionResult struct {
	Payment  *models.Payment `json:"payment"`
	OrderIDs []uuid.UUID     `json:"order_ids"`
	Applied  bool            `json:"applied"`
}

type ServiceParams struct {
	Repository Repository
	Orders     orders.Repository
	TxRunner   txRunner
	Outbox     outboxPublisher
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo   Repository
	orders orders.Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
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
		repo:   params.Repository,
		orders: params.Orders,
		tx:     params.TxRunner,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Payment, error) {
	if input.PayerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payer identity missing")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]any{"method": input.Method})
	}
	proof := strings.TrimSpace(input.ProofRef)
	if proof == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment proof reference required")
	}

	payment := &models.Payment{
		PayerID:     input.PayerID,
		Method:      input.Method,
		ProofRef:    proof,
		PhoneNumber: strings.TrimSpace(input.PhoneNumber),
		BankAccount: strings.TrimSpace(input.BankAccount),
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.WrapStore(err, "create payment")
	}
	s.logg.Info(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "payment created")
	return payment, nil
}

// Assign attaches orders to an undecided payment. Every order must belong to
// the buyer, still be pending, and share one shop with the orders already
// under the payment.
func (s *service) Assign(ctx context.Context, input AssignInput) (*AssignResult, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	orderIDs := dedupe(input.OrderIDs)
	if len(orderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id required")
	}

	var result *AssignResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		payment, err := s.loadPayment(ctx, repo, input.PaymentID)
		if err != nil {
			return err
		}
		if payment.PayerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another buyer")
		}
		if payment.IsVerified != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already decided")
		}

		shopIDs, err := orderRepo.ShopIDsForPayment(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment shops")
		}
		var shopID uuid.UUID
		if len(shopIDs) > 0 {
			shopID = shopIDs[0]
		}

		for _, id := range orderIDs {
			order, err := orderRepo.FindByID(ctx, id)
			if err != nil {
				if errors.Is(err, orders.ErrNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
						WithDetails(map[string]any{"order_id": id.String()})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			if order.BuyerID != input.BuyerID {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
					WithDetails(map[string]any{"order_id": id.String()})
			}
			if order.PaymentID != nil && *order.PaymentID != payment.ID {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a payment").
					WithDetails(map[string]any{"order_id": id.String()})
			}
			if order.Status != enums.OrderStatusPending {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be paid").
					WithDetails(map[string]any{"order_id": id.String(), "status": order.Status})
			}
			if shopID == uuid.Nil {
				shopID = order.ShopID
			}
			if order.ShopID != shopID {
				return pkgerrors.New(pkgerrors.CodeShopMismatch, "all orders of a payment must belong to one shop").
					WithDetails(map[string]any{"order_id": id.String(), "shop_id": order.ShopID.String()})
			}
		}

		attached, err := orderRepo.AttachPayment(ctx, payment.ID, orderIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment")
		}
		if attached != int64(len(orderIDs)) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "orders changed while assigning the payment")
		}
		linked, err := orderRepo.ListByPayment(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment orders")
		}
		result = &AssignResult{Payment: payment, Orders: linked}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":  input.PaymentID.String(),
		"order_count": len(result.Orders),
	})
	s.logg.Info(logCtx, "payment assigned to orders")
	return result, nil
}

// Decide applies a verify/reject decision to the payment and, in the same
// transaction, moves every affected order with a single update.
func (s *service) Decide(ctx context.Context, input DecisionInput) (*DecisionResult, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var result *DecisionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		payment, err := s.loadPayment(ctx, repo, input.PaymentID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		applied, err := repo.RecordDecision(ctx, payment.ID, input.Verified, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment decision")
		}
		if !applied {
			if payment.IsVerified != nil && *payment.IsVerified == input.Verified {
				result = &DecisionResult{Payment: payment}
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment decision cannot be changed").
				WithDetails(map[string]any{"payment_id": payment.ID.String()})
		}

		from, to, eventType := decisionTransition(input.Verified)
		moved, err := orderRepo.UpdateStatusByPayment(ctx, payment.ID, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payment decision to orders")
		}

		verified := input.Verified
		payment.IsVerified = &verified
		payment.DecidedAt = &now

		var actor *outbox.ActorRef
		if input.Actor != nil {
			actor = input.Actor.Ref()
		}
		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.PaymentDecisionEvent{
				PaymentID: payment.ID,
				Verified:  verified,
				OrderIDs:  moved,
				DecidedAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment decision")
		}
		result = &DecisionResult{Payment: payment, OrderIDs: moved, Applied: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":  input.PaymentID.String(),
		"verified":    input.Verified,
		"applied":     result.Applied,
		"order_count": len(result.OrderIDs),
	})
	s.logg.Info(logCtx, "payment decision processed")
	return result, nil
}

func (s *service) loadPayment(ctx context.Context, repo Repository, id uuid.UUID) (*models.Payment, error) {
	payment, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// decisionTransition returns the source statuses, the target status and the
// event for a decision. Re-verifying a rejected payment also recovers its
// errored orders, since payment_error → paid is a legal edge.
func decisionTransition(verified bool) ([]enums.OrderStatus, enums.OrderStatus, enums.OutboxEventType) {
	target, event := enums.OrderStatusPaymentError, enums.EventPaymentRejected
	if verified {
		target, event = enums.OrderStatusPaid, enums.EventPaymentVerified
	}
	return enums.OrderStatusesAllowing(target), target, event
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
