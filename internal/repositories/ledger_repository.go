package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/finplay/settlement/internal/models"
)

type LedgerRepository struct {
	db *gorm.DB
}

func (r *LedgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, translate(err)
}

func (r *LedgerRepository) ListByReference(ctx context.Context, refType, refID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, translate(err)
}
