package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KalilovM/topshopes-backend/pkg/db/models"
)

// ErrNotFound is returned when a payment does not exist.
var ErrNotFound = errors.New("payment not found")

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	RecordDecision(ctx context.Context, id uuid.UUID, verified bool, decidedAt time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate holds a row lock on the payment for the rest of the
// transaction. Assign and Decide both take it, so a decision never misses
// orders attached by a concurrent assignment.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func find(query *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := query.Where("id = ?", id).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// RecordDecision stores the gateway decision. A verification may replace an
// earlier rejection; a rejection only applies to an undecided payment. It
// reports false when the guard did not match.
func (r *repository) RecordDecision(ctx context.Context, id uuid.UUID, verified bool, decidedAt time.Time) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id)
	if verified {
		query = query.Where("is_verified IS NULL OR is_verified = ?", false)
	} else {
		query = query.Where("is_verified IS NULL")
	}
	res := query.Updates(map[string]any{
		"is_verified": verified,
		"decided_at":  decidedAt,
		"updated_at":  decidedAt,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
