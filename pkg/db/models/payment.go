package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

// Payment is a buyer-submitted payment that may cover several orders of one shop.
// IsVerified is nil until the gateway decides.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PayerID     uuid.UUID           `gorm:"column:payer_id;type:uuid;not null;index" json:"payer_id"`
	Method      enums.PaymentMethod `gorm:"column:method;type:text;not null" json:"method"`
	ProofRef    string              `gorm:"column:proof_ref;type:text;not null" json:"proof_ref"`
	PhoneNumber string              `gorm:"column:phone_number;type:text;not null" json:"phone_number"`
	BankAccount string              `gorm:"column:bank_account;type:text;not null" json:"bank_account"`
	IsVerified  *bool               `gorm:"column:is_verified" json:"is_verified"`
	DecidedAt   *time.Time          `gorm:"column:decided_at" json:"decided_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
