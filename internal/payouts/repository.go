package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/KalilovM/topshopes-backend/pkg/db"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/pagination"
)

const (
	orderUniqueIndex  = "ux_payouts_order_id"
	// sqlite names the column instead of the index
	orderUniqueColumn = "payouts.order_id"
)

var (
	// ErrNotFound is returned when a payout does not exist.
	ErrNotFound = errors.New("payout not found")
	// ErrAlreadyRecorded is returned when the order already has a payout.
	ErrAlreadyRecorded = errors.New("payout already recorded for order")
)

// PayoutList wraps a page of payouts plus the cursor for the next page.
type PayoutList struct {
	Payouts    []models.Payout `json:"payouts"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payout, error)
	List(ctx context.Context, shopID *uuid.UUID, params pagination.Params) (*PayoutList, error)
	UpdateProof(ctx context.Context, id uuid.UUID, proofRef string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the payout. The unique order index turns a second payout for
// the same order into ErrAlreadyRecorded.
func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	now := time.Now().UTC()
	if payout.CreatedAt.IsZero() {
		payout.CreatedAt = now
	}
	if payout.UpdatedAt.IsZero() {
		payout.UpdatedAt = now
	}
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, orderUniqueIndex) || dbpkg.IsUniqueViolation(err, orderUniqueColumn) {
			return ErrAlreadyRecorded
		}
		return err
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payout, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

func (r *repository) findOne(ctx context.Context, clause string, arg any) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where(clause, arg).First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) List(ctx context.Context, shopID *uuid.UUID, params pagination.Params) (*PayoutList, error) {
	query := r.db.WithContext(ctx).Model(&models.Payout{})
	if shopID != nil {
		query = query.Where("shop_id = ?", *shopID)
	}
	query, err := pagination.Keyset(query, params)
	if err != nil {
		return nil, err
	}

	var rows []models.Payout
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	list := &PayoutList{}
	list.Payouts, list.NextCursor = pagination.Page(rows, params, func(p models.Payout) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return list, nil
}

func (r *repository) UpdateProof(ctx context.Context, id uuid.UUID, proofRef string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"proof_ref":  proofRef,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
