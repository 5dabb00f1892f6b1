package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/finplay/settlement/internal/models"
)

type OrderRepository struct {
	db *gorm.DB
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// Decide writes the terminal status with the current status as a
// compare-and-swap guard. A concurrent decision makes the guard fail and
// returns ErrStaleRecord; the caller reports OrderAlreadyDecided.
func (r *OrderRepository) Decide(ctx context.Context, id string, fromStatuses []string, decision OrderDecision) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(map[string]interface{}{
			"status":     decision.Status,
			"reason":     decision.Reason,
			"decided_by": decision.DecidedBy,
			"decided_at": decision.DecidedAt,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleRecord
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStaleRecord
	}
	return nil
}

func (r *OrderRepository) SetMetadata(ctx context.Context, id string, metadata models.JSONMap) error {
	return translate(r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("metadata", metadata).Error)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, translate(err)
}

func (r *OrderRepository) ListByStatus(ctx context.Context, statuses []string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, translate(err)
}

func (r *OrderRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?",
			[]string{models.OrderStatusPending, models.OrderStatusAwaitingProof}, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, translate(err)
}
