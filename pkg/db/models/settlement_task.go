package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

// SettlementTask is the durable one-shot timer armed when an order is delivered.
type SettlementTask struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID      uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_settlement_tasks_order_id" json:"order_id"`
	RunAt        time.Time                  `gorm:"column:run_at;not null;index" json:"run_at"`
	Status       enums.SettlementTaskStatus `gorm:"column:status;type:text;not null;default:'scheduled'" json:"status"`
	AttemptCount int                        `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastError    *string                    `gorm:"column:last_error" json:"last_error"`
	CompletedAt  *time.Time                 `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SettlementTask) TableName() string { return "settlement_tasks" }

func (t *SettlementTask) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
