package webhooks

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/api/responses"
	"github.com/KalilovM/topshopes-backend/api/validators"
	internalpayments "github.com/KalilovM/topshopes-backend/internal/payments"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
)

type paymentEvent struct {
	PaymentID string `json:"payment_id" validate:"required,uuid"`
	Verified  *bool  `json:"verified" validate:"required"`
}

// PaymentDecision applies a signed gateway callback. Signature checks run in
// middleware; redelivered callbacks are absorbed by the service as no-ops.
func PaymentDecision(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var event paymentEvent
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID := uuid.MustParse(event.PaymentID)

		ctx := logg.WithFields(r.Context(), map[string]any{
			"payment_id": paymentID.String(),
			"verified":   *event.Verified,
			"source":     "gateway",
		})
		result, err := svc.Decide(ctx, internalpayments.DecisionInput{
			PaymentID: paymentID,
			Verified:  *event.Verified,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !result.Applied {
			logg.Info(ctx, "duplicate payment callback ignored")
		}
		responses.WriteSuccess(w, map[string]any{"applied": result.Applied})
	}
}
