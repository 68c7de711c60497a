package orders

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/api/controllers/actorcontext"
	"github.com/KalilovM/topshopes-backend/api/responses"
	"github.com/KalilovM/topshopes-backend/api/validators"
	internalorders "github.com/KalilovM/topshopes-backend/internal/orders"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
)

type buyRequest struct {
	ShopID    string          `json:"shop_id" validate:"required,uuid"`
	UnitID    string          `json:"unit_id" validate:"required,uuid"`
	AddressID string          `json:"address_id" validate:"required,uuid"`
	Quantity  json.RawMessage `json:"quantity"`
	PaymentID *string         `json:"payment_id,omitempty" validate:"omitempty,uuid"`
}

// parseQuantity accepts only a bare JSON integer. Strings, fractions and
// out-of-range numbers are quantity errors rather than malformed bodies.
// The sign is checked by the service.
func parseQuantity(raw json.RawMessage) (int, error) {
	invalid := pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be a positive integer").
		WithDetails(map[string]any{"quantity": string(raw)})
	if len(raw) == 0 || raw[0] == '"' {
		return 0, invalid
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, invalid
	}
	value, err := n.Int64()
	if err != nil || int64(int(value)) != value {
		return 0, invalid
	}
	return int(value), nil
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

// Buy places a single-unit-line order for the authenticated buyer.
func Buy(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req buyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity, err := parseQuantity(req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.BuyInput{
			BuyerID:   actor.UserID,
			ShopID:    uuid.MustParse(req.ShopID),
			UnitID:    uuid.MustParse(req.UnitID),
			AddressID: uuid.MustParse(req.AddressID),
			Quantity:  quantity,
		}
		if req.PaymentID != nil {
			paymentID := uuid.MustParse(*req.PaymentID)
			input.PaymentID = &paymentID
		}

		ctx := logg.WithField(r.Context(), "inventory_unit_id", req.UnitID)
		order, err := svc.Buy(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// List returns the caller's orders. Sellers get their shop's orders, buyers their own.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := parseStatusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), actor, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order after the service checks the caller may see it.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		order, err := svc.Cancel(ctx, internalorders.CancelInput{OrderID: orderID, Actor: actor})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Transition moves an order along the shop fulfillment path. Sellers and
// admins share this handler; the service checks shop ownership.
func Transition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"}))
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		order, err := svc.Transition(ctx, internalorders.TransitionInput{OrderID: orderID, Target: target, Actor: actor})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func parseStatusFilter(r *http.Request) (*enums.OrderStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseOrderStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"})
	}
	return &status, nil
}
