package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller did not set one.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All returns every persisted model, in dependency order.
func All() []any {
	return []any{
		&InventoryUnit{},
		&Payment{},
		&Order{},
		&Payout{},
		&SettlementTask{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
