package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	"github.com/KalilovM/topshopes-backend/pkg/pagination"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrPaymentNotFound is returned when a referenced payment does not exist.
	ErrPaymentNotFound = errors.New("payment not found")
)

// Repository persists orders. Every status change is conditional on the
// current status so concurrent writers cannot both win.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error)

	FindPaymentForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ShopIDsForPayment(ctx context.Context, paymentID uuid.UUID) ([]uuid.UUID, error)
	AttachPayment(ctx context.Context, paymentID uuid.UUID, orderIDs []uuid.UUID) (int64, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Order, error)
	UpdateStatusByPayment(ctx context.Context, paymentID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPending
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filters.BuyerID)
	}
	if filters.ShopID != nil {
		query = query.Where("shop_id = ?", *filters.ShopID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	query, err := pagination.Keyset(query, params)
	if err != nil {
		return nil, err
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	list := &OrderList{}
	list.Orders, list.NextCursor = pagination.Page(rows, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return list, nil
}

// UpdateStatus moves an order from one status to another and reports whether
// this call won the transition.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for key, value := range extra {
		updates[key] = value
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindPaymentForUpdate row-locks the payment until the surrounding transaction
// ends, serializing order placement against assignment and decisions.
func (r *repository) FindPaymentForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ShopIDsForPayment(ctx context.Context, paymentID uuid.UUID) ([]uuid.UUID, error) {
	var shopIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_id = ?", paymentID).
		Distinct("shop_id").
		Pluck("shop_id", &shopIDs).Error
	if err != nil {
		return nil, err
	}
	return shopIDs, nil
}

// AttachPayment links orders to a payment. Orders already linked to a
// different payment are left untouched and not counted.
func (r *repository) AttachPayment(ctx context.Context, paymentID uuid.UUID, orderIDs []uuid.UUID) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ?", orderIDs).
		Where("payment_id IS NULL OR payment_id = ?", paymentID).
		Updates(map[string]any{
			"payment_id": paymentID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatusByPayment applies one status change to every order of a payment
// currently in one of the from statuses, in a single statement. It returns the
// ids it selected; callers run it inside a transaction so the set is stable.
func (r *repository) UpdateStatusByPayment(ctx context.Context, paymentID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) ([]uuid.UUID, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("from statuses required")
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_id = ? AND status IN ?", paymentID, from).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_id = ? AND status IN ?", paymentID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return nil, fmt.Errorf("payment %s: expected %d orders updated, got %d", paymentID, len(ids), res.RowsAffected)
	}
	return ids, nil
}
