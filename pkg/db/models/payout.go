package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payout records money owed to a shop for one settled order.
type Payout struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payouts_order_id" json:"order_id"`
	PaymentID   *uuid.UUID `gorm:"column:payment_id;type:uuid" json:"payment_id"`
	ShopID      uuid.UUID  `gorm:"column:shop_id;type:uuid;not null;index" json:"shop_id"`
	AmountCents int64      `gorm:"column:amount_cents;not null" json:"amount_cents"`
	TaxCents    int64      `gorm:"column:tax_cents;not null" json:"tax_cents"`
	ProofRef    *string    `gorm:"column:proof_ref" json:"proof_ref"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Payout) TableName() string { return "payouts" }

func (p *Payout) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
