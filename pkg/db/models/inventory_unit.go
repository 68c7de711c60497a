package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

// InventoryUnit is a purchasable variant of a product listed by one shop.
type InventoryUnit struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ShopID             uuid.UUID             `gorm:"column:shop_id;type:uuid;not null;index" json:"shop_id"`
	SKU                string                `gorm:"column:sku;type:text;not null" json:"sku"`
	PriceCents         int64                 `gorm:"column:price_cents;not null" json:"price_cents"`
	DiscountPercent    *int                  `gorm:"column:discount_percent" json:"discount_percent"`
	DiscountPriceCents *int64                `gorm:"column:discount_price_cents" json:"discount_price_cents"`
	TaxPercent         int                   `gorm:"column:tax_percent;not null;default:0" json:"tax_percent"`
	Stock              int                   `gorm:"column:stock;not null;default:0;check:chk_inventory_units_empty_unavailable,stock > 0 OR status = 'unavailable'" json:"stock"`
	Status             enums.InventoryStatus `gorm:"column:status;type:text;not null;default:'available'" json:"status"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (InventoryUnit) TableName() string { return "inventory_units" }

func (u *InventoryUnit) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
