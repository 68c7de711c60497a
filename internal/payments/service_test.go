package payments_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/KalilovM/topshopes-backend/internal/orders"
	"github.com/KalilovM/topshopes-backend/internal/payments"
	dbpkg "github.com/KalilovM/topshopes-backend/pkg/db"
	"github.com/KalilovM/topshopes-backend/pkg/db/dbtest"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/payloads"
)

func newService(t *testing.T) (payments.Service, *dbpkg.Client, orders.Repository) {
	t.Helper()
	client := dbtest.Open(t)
	orderRepo := orders.NewRepository(client.DB())
	svc, err := payments.NewService(payments.ServiceParams{
		Repository: payments.NewRepository(client.DB()),
		Orders:     orderRepo,
		TxRunner:   client,
		Outbox:     outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, client, orderRepo
}

func createPayment(t *testing.T, svc payments.Service, payerID uuid.UUID) *models.Payment {
	t.Helper()
	payment, err := svc.Create(context.Background(), payments.CreateInput{
		PayerID:     payerID,
		Method:      enums.PaymentMethodElsom,
		ProofRef:    "uploads/receipt-1.png",
		PhoneNumber: "+996555000111",
	})
	require.NoError(t, err)
	return payment
}

func createOrder(t *testing.T, repo orders.Repository, buyerID, shopID uuid.UUID, paymentID *uuid.UUID, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		BuyerID:         buyerID,
		ShopID:          shopID,
		InventoryUnitID: uuid.New(),
		Quantity:        1,
		TotalPriceCents: 500,
		AddressID:       uuid.New(),
		PaymentID:       paymentID,
		Status:          status,
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func statusOf(t *testing.T, repo orders.Repository, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	order, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order.Status
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, payments.CreateInput{PayerID: uuid.New(), Method: "cash", ProofRef: "x"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, payments.CreateInput{PayerID: uuid.New(), Method: enums.PaymentMethodVisa, ProofRef: "  "})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	payment, err := svc.Create(ctx, payments.CreateInput{PayerID: uuid.New(), Method: enums.PaymentMethodVisa, ProofRef: " ref "})
	require.NoError(t, err)
	require.Equal(t, "ref", payment.ProofRef)
	require.Nil(t, payment.IsVerified)
}

func TestVerifyMovesEveryPendingOrderOfThePayment(t *testing.T) {
	svc, client, repo := newService(t)
	ctx := context.Background()
	buyerID, shopID := uuid.New(), uuid.New()
	payment := createPayment(t, svc, buyerID)

	var pending []uuid.UUID
	for i := 0; i < 3; i++ {
		pending = append(pending, createOrder(t, repo, buyerID, shopID, &payment.ID, enums.OrderStatusPending).ID)
	}
	canceled := createOrder(t, repo, buyerID, shopID, &payment.ID, enums.OrderStatusCanceled)
	unrelated := createOrder(t, repo, buyerID, shopID, nil, enums.OrderStatusPending)

	result, err := svc.Decide(ctx, payments.DecisionInput{PaymentID: payment.ID, Verified: true})
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.ElementsMatch(t, pending, result.OrderIDs)
	require.True(t, *result.Payment.IsVerified)

	for _, id := range pending {
		require.Equal(t, enums.OrderStatusPaid, statusOf(t, repo, id))
	}
	require.Equal(t, enums.OrderStatusCanceled, statusOf(t, repo, canceled.ID))
	require.Equal(t, enums.OrderStatusPending, statusOf(t, repo, unrelated.ID))

	var row models.OutboxEvent
	require.NoError(t, client.DB().Where("event_type = ?", enums.EventPaymentVerified).First(&row).Error)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	var data payloads.PaymentDecisionEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.ElementsMatch(t, pending, data.OrderIDs)
}

func TestRejectThenVerifyRecoversErroredOrders(t *testing.T) {
	svc, _, repo := newService(t)
	ctx := context.Background()
	buyerID := uuid.New()
	payment := createPayment(t, svc, buyerID)
	order := createOrder(t, repo, buyerID, uuid.New(), &payment.ID, enums.OrderStatusPending)

	_, err := svc.Decide(ctx, payments.DecisionInput{PaymentID: payment.ID, Verified: false})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaymentError, statusOf(t, repo, order.ID))

	again, err := svc.Decide(ctx, payments.DecisionInput{PaymentID: payment.ID, Verified: false})
	require.NoError(t, err)
	require.False(t, again.Applied)

	_, err = svc.Decide(ctx, payments.DecisionInput{PaymentID: payment.ID, Verified: true})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, statusOf(t, repo, order.ID))

	_, err = svc.Decide(ctx, payments.DecisionInput{PaymentID: payment.ID, Verified: false})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	require.Equal(t, enums.OrderStatusPaid, statusOf(t, repo, order.ID))

	_, err = svc.Decide(ctx, payments.DecisionInput{PaymentID: uuid.New(), Verified: true})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestAssignRequiresOneShop(t *testing.T) {
	svc, _, repo := newService(t)
	ctx := context.Background()
	buyerID := uuid.New()
	shopA, shopB := uuid.New(), uuid.New()
	payment := createPayment(t, svc, buyerID)

	first := createOrder(t, repo, buyerID, shopA, nil, enums.OrderStatusPending)
	second := createOrder(t, repo, buyerID, shopA, nil, enums.OrderStatusPending)
	foreign := createOrder(t, repo, buyerID, shopB, nil, enums.OrderStatusPending)

	result, err := svc.Assign(ctx, payments.AssignInput{PaymentID: payment.ID, BuyerID: buyerID, OrderIDs: []uuid.UUID{first.ID, second.ID, first.ID}})
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)

	_, err = svc.Assign(ctx, payments.AssignInput{PaymentID: payment.ID, BuyerID: buyerID, OrderIDs: []uuid.UUID{foreign.ID}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeShopMismatch), "got %v", err)

	stored, err := repo.FindByID(ctx, foreign.ID)
	require.NoError(t, err)
	require.Nil(t, stored.PaymentID)
}

func TestAssignRejectsForeignOrDecidedPayments(t *testing.T) {
	svc, _, repo := newService(t)
	ctx := context.Background()
	buyerID := uuid.New()
	payment := createPayment(t, svc, buyerID)
	order := createOrder(t, repo, buyerID, uuid.New(), nil, enums.OrderStatusPending)

	_, err := svc.Assign(ctx, payments.AssignInput{PaymentID: payment.ID, BuyerID: uuid.New(), OrderIDs: []uuid.UUID{order.ID}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	paid := createOrder(t, repo, buyerID, order.ShopID, nil, enums.OrderStatusPaid)
	_, err = svc.Assign(ctx, payments.AssignInput{PaymentID: payment.ID, BuyerID: buyerID, OrderIDs: []uuid.UUID{paid.ID}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = svc.Decide(ctx, payments.DecisionInput{PaymentID: payment.ID, Verified: true})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, payments.AssignInput{PaymentID: payment.ID, BuyerID: buyerID, OrderIDs: []uuid.UUID{order.ID}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestAssignAndDecideHoldThePaymentRowLock(t *testing.T) {
	svc, client, repo := newService(t)
	ctx := context.Background()
	reads := dbtest.TrackLockedReads(t, client)
	buyerID, shopID := uuid.New(), uuid.New()
	payment := createPayment(t, svc, buyerID)
	order := createOrder(t, repo, buyerID, shopID, nil, enums.OrderStatusPending)

	_, err := svc.Assign(ctx, payments.AssignInput{PaymentID: payment.ID, BuyerID: buyerID, OrderIDs: []uuid.UUID{order.ID}})
	require.NoError(t, err)
	require.Equal(t, 1, reads.Count("payments"))

	result, err := svc.Decide(ctx, payments.DecisionInput{PaymentID: payment.ID, Verified: true})
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.Equal(t, 2, reads.Count("payments"))
	require.Equal(t, []uuid.UUID{order.ID}, result.OrderIDs)

	// a late assignment sees the decision under the lock and is refused
	late := createOrder(t, repo, buyerID, shopID, nil, enums.OrderStatusPending)
	_, err = svc.Assign(ctx, payments.AssignInput{PaymentID: payment.ID, BuyerID: buyerID, OrderIDs: []uuid.UUID{late.ID}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	require.Equal(t, enums.OrderStatusPending, statusOf(t, repo, late.ID))
}
