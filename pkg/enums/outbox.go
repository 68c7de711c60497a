package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregatePayment        OutboxAggregateType = "payment"
	AggregatePayout         OutboxAggregateType = "payout"
	AggregateSettlementTask OutboxAggregateType = "settlement_task"
)

// OutboxEventType is the routing key of an outbox event. The registry maps
// each one to a topic and payload shape.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderStateChanged      OutboxEventType = "order_state_changed"
	EventOrderDelivered         OutboxEventType = "order_delivered"
	EventOrderCompleted         OutboxEventType = "order_completed"
	EventOrderCanceled          OutboxEventType = "order_canceled"
	EventPaymentVerified        OutboxEventType = "payment_verified"
	EventPaymentRejected        OutboxEventType = "payment_rejected"
	EventPayoutRecorded         OutboxEventType = "payout_recorded"
	EventSettlementDeadLettered OutboxEventType = "settlement_dead_lettered"
)
