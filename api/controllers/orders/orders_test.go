package orders

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/api/middleware"
	internalorders "github.com/KalilovM/topshopes-backend/internal/orders"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/pagination"
	"github.com/KalilovM/topshopes-backend/pkg/types"
)

type stubOrdersService struct {
	buy        func(ctx context.Context, input internalorders.BuyInput) (*models.Order, error)
	list       func(ctx context.Context, actor internalorders.Actor, status *enums.OrderStatus, params pagination.Params) (*internalorders.OrderList, error)
	transition func(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error)
	cancel     func(ctx context.Context, input internalorders.CancelInput) (*models.Order, error)
}

func (s stubOrdersService) Buy(ctx context.Context, input internalorders.BuyInput) (*models.Order, error) {
	return s.buy(ctx, input)
}

func (s stubOrdersService) Get(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s stubOrdersService) List(ctx context.Context, actor internalorders.Actor, status *enums.OrderStatus, params pagination.Params) (*internalorders.OrderList, error) {
	return s.list(ctx, actor, status, params)
}

func (s stubOrdersService) Transition(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error) {
	return s.transition(ctx, input)
}

func (s stubOrdersService) Cancel(ctx context.Context, input internalorders.CancelInput) (*models.Order, error) {
	return s.cancel(ctx, input)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authed(req *http.Request, userID uuid.UUID, role enums.Role, shopID *uuid.UUID) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, role.String())
	if shopID != nil {
		ctx = middleware.WithShopID(ctx, shopID.String())
	}
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestBuyPassesBuyerAndBody(t *testing.T) {
	buyerID := uuid.New()
	shopID, unitID, addressID := uuid.New(), uuid.New(), uuid.New()
	var captured internalorders.BuyInput
	svc := stubOrdersService{buy: func(ctx context.Context, input internalorders.BuyInput) (*models.Order, error) {
		captured = input
		return &models.Order{ID: uuid.New(), BuyerID: input.BuyerID, Quantity: input.Quantity, TotalPriceCents: 1800}, nil
	}}

	body := `{"shop_id":"` + shopID.String() + `","unit_id":"` + unitID.String() + `","address_id":"` + addressID.String() + `","quantity":2}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), buyerID, enums.RoleBuyer, nil)
	resp := httptest.NewRecorder()
	Buy(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.BuyerID != buyerID || captured.UnitID != unitID || captured.ShopID != shopID || captured.Quantity != 2 {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.PaymentID != nil {
		t.Fatalf("expected no payment id")
	}
}

func TestBuyMapsDomainErrors(t *testing.T) {
	tests := []struct {
		code   pkgerrors.Code
		status int
	}{
		{pkgerrors.CodeInvalidQuantity, http.StatusBadRequest},
		{pkgerrors.CodeInsufficientStock, http.StatusConflict},
		{pkgerrors.CodeLockBusy, http.StatusConflict},
		{pkgerrors.CodeShopMismatch, http.StatusConflict},
	}
	for _, tt := range tests {
		svc := stubOrdersService{buy: func(context.Context, internalorders.BuyInput) (*models.Order, error) {
			return nil, pkgerrors.New(tt.code, "rejected")
		}}
		body := `{"shop_id":"` + uuid.NewString() + `","unit_id":"` + uuid.NewString() + `","address_id":"` + uuid.NewString() + `","quantity":0}`
		req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), uuid.New(), enums.RoleBuyer, nil)
		resp := httptest.NewRecorder()
		Buy(svc, testLogger()).ServeHTTP(resp, req)

		if resp.Code != tt.status {
			t.Fatalf("%s: expected %d got %d", tt.code, tt.status, resp.Code)
		}
		if got := decodeErrorCode(t, resp.Body); got != string(tt.code) {
			t.Fatalf("expected code %s got %s", tt.code, got)
		}
	}
}

func TestBuyRejectsNonIntegerQuantity(t *testing.T) {
	svc := stubOrdersService{buy: func(context.Context, internalorders.BuyInput) (*models.Order, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	for _, quantity := range []string{`2.5`, `"abc"`, `"3"`, `null`, `1e100`, `true`} {
		body := `{"shop_id":"` + uuid.NewString() + `","unit_id":"` + uuid.NewString() + `","address_id":"` + uuid.NewString() + `","quantity":` + quantity + `}`
		req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), uuid.New(), enums.RoleBuyer, nil)
		resp := httptest.NewRecorder()
		Buy(svc, testLogger()).ServeHTTP(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("quantity %s: expected 400 got %d", quantity, resp.Code)
		}
		if got := decodeErrorCode(t, resp.Body); got != string(pkgerrors.CodeInvalidQuantity) {
			t.Fatalf("quantity %s: expected %s got %s", quantity, pkgerrors.CodeInvalidQuantity, got)
		}
	}
}

func TestBuyPassesIntegerQuantityThrough(t *testing.T) {
	var got int
	svc := stubOrdersService{buy: func(_ context.Context, input internalorders.BuyInput) (*models.Order, error) {
		got = input.Quantity
		return &models.Order{ID: uuid.New(), Quantity: input.Quantity}, nil
	}}
	body := `{"shop_id":"` + uuid.NewString() + `","unit_id":"` + uuid.NewString() + `","address_id":"` + uuid.NewString() + `","quantity":3}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), uuid.New(), enums.RoleBuyer, nil)
	resp := httptest.NewRecorder()
	Buy(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if got != 3 {
		t.Fatalf("expected quantity 3 got %d", got)
	}
}

func TestBuyRejectsMalformedBody(t *testing.T) {
	svc := stubOrdersService{buy: func(context.Context, internalorders.BuyInput) (*models.Order, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"unit_id":"x","quantity":1}`)), uuid.New(), enums.RoleBuyer, nil)
	resp := httptest.NewRecorder()
	Buy(svc, testLogger()).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListParsesStatusAndCursor(t *testing.T) {
	shopID := uuid.New()
	var (
		gotStatus *enums.OrderStatus
		gotParams pagination.Params
		gotActor  internalorders.Actor
	)
	svc := stubOrdersService{list: func(ctx context.Context, actor internalorders.Actor, status *enums.OrderStatus, params pagination.Params) (*internalorders.OrderList, error) {
		gotActor, gotStatus, gotParams = actor, status, params
		return &internalorders.OrderList{}, nil
	}}

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: time.Now(), ID: uuid.New()})
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/shop/orders?status=paid&limit=10&cursor="+cursor, nil), uuid.New(), enums.RoleSeller, &shopID)
	resp := httptest.NewRecorder()
	List(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotStatus == nil || *gotStatus != enums.OrderStatusPaid {
		t.Fatalf("expected paid filter, got %v", gotStatus)
	}
	if gotParams.Limit != 10 || gotParams.Cursor != cursor {
		t.Fatalf("unexpected params %+v", gotParams)
	}
	if gotActor.ShopID == nil || *gotActor.ShopID != shopID {
		t.Fatalf("expected seller shop on actor")
	}

	bad := authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=lost", nil), uuid.New(), enums.RoleBuyer, nil)
	resp = httptest.NewRecorder()
	List(svc, testLogger()).ServeHTTP(resp, bad)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status got %d", resp.Code)
	}
}

func TestTransitionForwardsTargetStatus(t *testing.T) {
	orderID := uuid.New()
	shopID := uuid.New()
	var captured internalorders.TransitionInput
	svc := stubOrdersService{transition: func(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error) {
		captured = input
		return &models.Order{ID: input.OrderID, Status: input.Target}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shop/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"delivered"}`))
	req = authed(withURLParam(req, "orderId", orderID.String()), uuid.New(), enums.RoleSeller, &shopID)
	resp := httptest.NewRecorder()
	Transition(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.OrderID != orderID || captured.Target != enums.OrderStatusDelivered || captured.Actor.Role != enums.RoleSeller {
		t.Fatalf("unexpected input %+v", captured)
	}
}

func TestCancelAndDetailRequireValidOrderID(t *testing.T) {
	svc := stubOrdersService{cancel: func(context.Context, internalorders.CancelInput) (*models.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be canceled")
	}}

	req := authed(withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "orderId", "nope"), uuid.New(), enums.RoleBuyer, nil)
	resp := httptest.NewRecorder()
	Cancel(svc, testLogger()).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = authed(withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "orderId", uuid.NewString()), uuid.New(), enums.RoleBuyer, nil)
	resp = httptest.NewRecorder()
	Cancel(svc, testLogger()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}

	req = authed(withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "orderId", uuid.NewString()), uuid.New(), enums.RoleBuyer, nil)
	resp = httptest.NewRecorder()
	Detail(svc, testLogger()).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
