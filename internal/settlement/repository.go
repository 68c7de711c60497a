package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

const maxErrorLength = 1024

// ErrNotFound is returned when an order has no settlement task.
var ErrNotFound = errors.New("settlement task not found")

// Repository stores settlement tasks, one per order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, orderID uuid.UUID, runAt time.Time) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.SettlementTask, error)
	FetchDue(ctx context.Context, now time.Time, limit int) ([]models.SettlementTask, error)
	Postpone(ctx context.Context, ids []uuid.UUID, runAt time.Time) error
	MarkCompleted(ctx context.Context, orderID uuid.UUID, at time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, attempts int, lastErr string, nextRun time.Time) error
	MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
	FindUnarmedDeliveries(ctx context.Context, deliveredBefore time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement task repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert arms the task for orderID. An existing task that has not completed
// is re-scheduled with a fresh attempt budget; a completed task is left alone.
func (r *repository) Upsert(ctx context.Context, orderID uuid.UUID, runAt time.Time) error {
	now := time.Now().UTC()
	task := models.SettlementTask{
		ID:        uuid.New(),
		OrderID:   orderID,
		RunAt:     runAt,
		Status:    enums.SettlementTaskScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"run_at":        runAt,
				"status":        enums.SettlementTaskScheduled,
				"attempt_count": 0,
				"last_error":    nil,
				"updated_at":    now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Neq{Column: clause.Column{Table: "settlement_tasks", Name: "status"}, Value: enums.SettlementTaskCompleted},
			}},
		}).
		Create(&task).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.SettlementTask, error) {
	var task models.SettlementTask
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// FetchDue locks up to limit due tasks, skipping rows another worker holds.
func (r *repository) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.SettlementTask, error) {
	var tasks []models.SettlementTask
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND run_at <= ?", enums.SettlementTaskScheduled, now).
		Order("run_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

func (r *repository) Postpone(ctx context.Context, ids []uuid.UUID, runAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.SettlementTask{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"run_at":     runAt,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) MarkCompleted(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SettlementTask{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"status":       enums.SettlementTaskCompleted,
			"completed_at": at,
			"updated_at":   at,
		}).Error
}

func (r *repository) RecordFailure(ctx context.Context, id uuid.UUID, attempts int, lastErr string, nextRun time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SettlementTask{}).
		Where("id = ? AND status = ?", id, enums.SettlementTaskScheduled).
		Updates(map[string]any{
			"attempt_count": attempts,
			"last_error":    truncate(lastErr),
			"run_at":        nextRun,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *repository) MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return r.db.WithContext(ctx).
		Model(&models.SettlementTask{}).
		Where("id = ? AND status = ?", id, enums.SettlementTaskScheduled).
		Updates(map[string]any{
			"status":        enums.SettlementTaskDead,
			"attempt_count": attempts,
			"last_error":    truncate(lastErr),
			"updated_at":    time.Now().UTC(),
		}).Error
}

// FindUnarmedDeliveries returns delivered orders past deliveredBefore that
// have no settlement task at all.
func (r *repository) FindUnarmedDeliveries(ctx context.Context, deliveredBefore time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("orders AS o").
		Joins("LEFT JOIN settlement_tasks t ON t.order_id = o.id").
		Where("o.status = ? AND o.delivered_at <= ? AND t.id IS NULL", enums.OrderStatusDelivered, deliveredBefore).
		Order("o.delivered_at ASC").
		Limit(limit).
		Pluck("o.id", &ids).Error
	return ids, err
}

func truncate(message string) string {
	if len(message) <= maxErrorLength {
		return message
	}
	return message[:maxErrorLength]
}
