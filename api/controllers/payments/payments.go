package payments

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/api/controllers/actorcontext"
	"github.com/KalilovM/topshopes-backend/api/responses"
	"github.com/KalilovM/topshopes-backend/api/validators"
	internalpayments "github.com/KalilovM/topshopes-backend/internal/payments"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
)

const (
	maxProofRefLength    = 512
	maxPhoneNumberLength = 32
	maxBankAccountLength = 64
)

type createRequest struct {
	Method      string `json:"method" validate:"required,payment_method"`
	ProofRef    string `json:"proof_ref" validate:"notblank"`
	PhoneNumber string `json:"phone_number"`
	BankAccount string `json:"bank_account"`
}

type assignRequest struct {
	OrderIDs []string `json:"order_ids" validate:"required,min=1,dive,uuid"`
}

type decisionRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}

// Create records a buyer's payment proof for later verification.
func Create(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(req.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").WithDetails(map[string]any{"field": "method"}))
			return
		}

		payment, err := svc.Create(r.Context(), internalpayments.CreateInput{
			PayerID:     actor.UserID,
			Method:      method,
			ProofRef:    validators.SanitizeString(req.ProofRef, maxProofRefLength),
			PhoneNumber: validators.SanitizeString(req.PhoneNumber, maxPhoneNumberLength),
			BankAccount: validators.SanitizeString(req.BankAccount, maxBankAccountLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

// Assign links the buyer's pending orders of a single shop to a payment.
func Assign(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderIDs := make([]uuid.UUID, 0, len(req.OrderIDs))
		for _, raw := range req.OrderIDs {
			orderIDs = append(orderIDs, uuid.MustParse(raw))
		}

		ctx := logg.WithField(r.Context(), "payment_id", paymentID.String())
		result, err := svc.Assign(ctx, internalpayments.AssignInput{
			PaymentID: paymentID,
			BuyerID:   actor.UserID,
			OrderIDs:  orderIDs,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminDecision verifies or rejects a payment on behalf of an operator.
func AdminDecision(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req decisionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithField(r.Context(), "payment_id", paymentID.String())
		result, err := svc.Decide(ctx, internalpayments.DecisionInput{
			PaymentID: paymentID,
			Verified:  *req.Verified,
			Actor:     &actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
