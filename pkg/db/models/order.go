package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

// Order is a single buy of one inventory unit. Rows are never deleted.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	ShopID          uuid.UUID         `gorm:"column:shop_id;type:uuid;not null;index" json:"shop_id"`
	InventoryUnitID uuid.UUID         `gorm:"column:inventory_unit_id;type:uuid;not null" json:"inventory_unit_id"`
	Quantity        int               `gorm:"column:quantity;not null" json:"quantity"`
	TotalPriceCents int64             `gorm:"column:total_price_cents;not null" json:"total_price_cents"`
	AddressID       uuid.UUID         `gorm:"column:address_id;type:uuid;not null" json:"address_id"`
	PaymentID       *uuid.UUID        `gorm:"column:payment_id;type:uuid;index" json:"payment_id"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeliveredAt     *time.Time        `gorm:"column:delivered_at" json:"delivered_at"`
	CompletedAt     *time.Time        `gorm:"column:completed_at" json:"completed_at"`
	CanceledAt      *time.Time        `gorm:"column:canceled_at" json:"canceled_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
