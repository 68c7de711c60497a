package actorcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/api/middleware"
	"github.com/KalilovM/topshopes-backend/internal/orders"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
)

// ResolveActor builds the authenticated actor from the request context.
func ResolveActor(r *http.Request) (orders.Actor, error) {
	ctx := r.Context()
	rawUser := middleware.UserIDFromContext(ctx)
	if rawUser == "" {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context required")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}

	role := enums.Role(middleware.RoleFromContext(ctx))
	if !role.IsValid() {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "role required")
	}

	actor := orders.Actor{UserID: userID, Role: role}
	if rawShop := middleware.ShopIDFromContext(ctx); rawShop != "" {
		shopID, err := uuid.Parse(rawShop)
		if err != nil {
			return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop id")
		}
		actor.ShopID = &shopID
	}
	return actor, nil
}

// ResolveSellerShopID extracts the seller's shop and enforces seller access.
func ResolveSellerShopID(r *http.Request) (uuid.UUID, error) {
	actor, err := ResolveActor(r)
	if err != nil {
		return uuid.Nil, err
	}
	if actor.Role != enums.RoleSeller {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller access required")
	}
	if actor.ShopID == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context required")
	}
	return *actor.ShopID, nil
}
