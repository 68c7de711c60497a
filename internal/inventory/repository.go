package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

// ErrNotFound is returned when an inventory unit does not exist.
var ErrNotFound = errors.New("inventory unit not found")

// Repository is the stock ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, unit *models.InventoryUnit) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryUnit, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, unit *models.InventoryUnit) error {
	if unit.Status == "" {
		unit.Status = enums.InventoryStatusAvailable
	}
	ApplyDerived(unit)
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// DecrementStock subtracts qty only while enough stock remains and flips the
// status to unavailable when the unit sells out. It reports false when the
// guard rejected the update.
func (r *repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_units
		SET stock = stock - ?,
			status = CASE WHEN stock - ? = 0 THEN ? ELSE status END,
			updated_at = ?
		WHERE id = ? AND stock >= ?`,
		qty, qty, enums.InventoryStatusUnavailable, time.Now().UTC(), id, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
