package enums

import "slices"

// OrderStatus tracks the lifecycle of a marketplace order.
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusPaymentError OrderStatus = "payment_error"
	OrderStatusPaid         OrderStatus = "paid"
	OrderStatusReady        OrderStatus = "ready"
	OrderStatusShopDecline  OrderStatus = "shop_decline"
	OrderStatusDelivering   OrderStatus = "delivering"
	OrderStatusDelivered    OrderStatus = "delivered"
	OrderStatusCanceled     OrderStatus = "canceled"
	OrderStatusCompleted    OrderStatus = "completed"
)

// orderStatuses is declaration order; OrderStatusesAllowing relies on it.
var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaymentError,
	OrderStatusPaid,
	OrderStatusReady,
	OrderStatusShopDecline,
	OrderStatusDelivering,
	OrderStatusDelivered,
	OrderStatusCanceled,
	OrderStatusCompleted,
}

// orderTransitions is the full edge set of the order state machine. Statuses
// without an entry are terminal. delivered → completed belongs to settlement.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:      {OrderStatusPaid, OrderStatusPaymentError, OrderStatusCanceled},
	OrderStatusPaymentError: {OrderStatusPaid, OrderStatusCanceled},
	OrderStatusPaid:         {OrderStatusReady, OrderStatusDelivering, OrderStatusShopDecline, OrderStatusCanceled},
	OrderStatusReady:        {OrderStatusDelivering, OrderStatusShopDecline, OrderStatusCanceled},
	OrderStatusDelivering:   {OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusDelivered:    {OrderStatusCompleted},
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return slices.Contains(orderStatuses, s) }

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// CanTransition reports whether moving from s to next is allowed.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

// IsShopTransition reports whether s may be requested through the
// fulfillment surface by a shop or an admin acting for it.
func (s OrderStatus) IsShopTransition() bool {
	switch s {
	case OrderStatusReady, OrderStatusDelivering, OrderStatusShopDecline, OrderStatusDelivered:
		return true
	}
	return false
}

// OrderStatusesAllowing returns every status from which next is reachable.
func OrderStatusesAllowing(next OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, from := range orderStatuses {
		if from.CanTransition(next) {
			out = append(out, from)
		}
	}
	return out
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", value, orderStatuses)
}
