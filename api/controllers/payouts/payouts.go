package payouts

import (
	"net/http"

	"github.com/KalilovM/topshopes-backend/api/controllers/actorcontext"
	"github.com/KalilovM/topshopes-backend/api/responses"
	"github.com/KalilovM/topshopes-backend/api/validators"
	internalpayouts "github.com/KalilovM/topshopes-backend/internal/payouts"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
)

const maxProofRefLength = 512

type proofRequest struct {
	ProofRef string `json:"proof_ref" validate:"notblank"`
}

// ShopList returns the payouts recorded for the seller's shop.
func ShopList(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		shopID, err := actorcontext.ResolveSellerShopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForShop(r.Context(), shopID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminList(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListAll(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AttachProof stores the transfer proof reference on a payout.
func AttachProof(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		payoutID, err := validators.ParseUUIDParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req proofRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithField(r.Context(), "payout_id", payoutID.String())
		payout, err := svc.AttachProof(ctx, payoutID, validators.SanitizeString(req.ProofRef, maxProofRefLength))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}
