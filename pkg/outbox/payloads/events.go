package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once a buy commits.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID  `json:"order_id"`
	BuyerID         uuid.UUID  `json:"buyer_id"`
	ShopID          uuid.UUID  `json:"shop_id"`
	InventoryUnitID uuid.UUID  `json:"inventory_unit_id"`
	Quantity        int        `json:"quantity"`
	TotalPriceCents int64      `json:"total_price_cents"`
	PaymentID       *uuid.UUID `json:"payment_id,omitempty"`
}

// OrderStateChangedEvent covers fulfillment transitions that carry no extra data.
type OrderStateChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	ShopID  uuid.UUID         `json:"shop_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	ShopID      uuid.UUID `json:"shop_id"`
	DeliveredAt time.Time `json:"delivered_at"`
	SettleAt    time.Time `json:"settle_at"`
}

type OrderCompletedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	ShopID      uuid.UUID `json:"shop_id"`
	PayoutID    uuid.UUID `json:"payout_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type OrderCanceledEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	ShopID     uuid.UUID         `json:"shop_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	From       enums.OrderStatus `json:"from"`
	CanceledAt time.Time         `json:"canceled_at"`
}

// PaymentDecisionEvent reports a verified or rejected payment and the orders it moved.
type PaymentDecisionEvent struct {
	PaymentID uuid.UUID   `json:"payment_id"`
	Verified  bool        `json:"verified"`
	OrderIDs  []uuid.UUID `json:"order_ids"`
	DecidedAt time.Time   `json:"decided_at"`
}

type PayoutRecordedEvent struct {
	PayoutID    uuid.UUID  `json:"payout_id"`
	OrderID     uuid.UUID  `json:"order_id"`
	ShopID      uuid.UUID  `json:"shop_id"`
	PaymentID   *uuid.UUID `json:"payment_id,omitempty"`
	AmountCents int64      `json:"amount_cents"`
	TaxCents    int64      `json:"tax_cents"`
}

// SettlementDeadLetteredEvent asks operators to settle an order by hand.
type SettlementDeadLetteredEvent struct {
	TaskID       uuid.UUID `json:"task_id"`
	OrderID      uuid.UUID `json:"order_id"`
	AttemptCount int       `json:"attempt_count"`
	LastError    string    `json:"last_error"`
}
