package orders

import (
	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
)

// Actor identifies who is asking for an order operation.
type Actor struct {
	UserID uuid.UUID
	ShopID *uuid.UUID
	Role   enums.Role
}

func (a Actor) IsAdmin() bool { return a.Role == enums.RoleAdmin }

func (a Actor) ownsShop(shopID uuid.UUID) bool {
	return a.Role == enums.RoleSeller && a.ShopID != nil && *a.ShopID == shopID
}

// Ref converts the actor into the outbox envelope form.
func (a Actor) Ref() *outbox.ActorRef {
	if a.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, ShopID: a.ShopID, Role: a.Role.String()}
}

// BuyInput carries one purchase request. Quantity is validated before any lock is taken.
type BuyInput struct {
	BuyerID   uuid.UUID
	ShopID    uuid.UUID
	UnitID    uuid.UUID
	AddressID uuid.UUID
	Quantity  int
	PaymentID *uuid.UUID
}

// TransitionInput asks to move an order along the fulfillment path.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
}

type CancelInput struct {
	OrderID uuid.UUID
	Actor   Actor
}

// ListFilters narrows order listings. Exactly one of BuyerID or ShopID is expected.
type ListFilters struct {
	BuyerID *uuid.UUID
	ShopID  *uuid.UUID
	Status  *enums.OrderStatus
}

// OrderList wraps a page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
