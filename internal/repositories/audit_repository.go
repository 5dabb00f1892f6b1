package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/finplay/settlement/internal/models"
)

type AuditRepository struct {
	db *gorm.DB
}

func (r *AuditRepository) Append(ctx context.Context, log *models.AuditLog) error {
	return translate(r.db.WithContext(ctx).Create(log).Error)
}

func (r *AuditRepository) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, translate(err)
}

func (r *AuditRepository) ListByResource(ctx context.Context, resourceType, resourceID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, translate(err)
}

type KeyRepository struct {
	db *gorm.DB
}

func (r *KeyRepository) Get(ctx context.Context, scope, key string) (*models.IdempotencyKey, error) {
	var record models.IdempotencyKey
	if err := r.db.WithContext(ctx).First(&record, "scope = ? AND key = ?", scope, key).Error; err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (r *KeyRepository) Create(ctx context.Context, record *models.IdempotencyKey) error {
	return translate(r.db.WithContext(ctx).Create(record).Error)
}

func (r *KeyRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.IdempotencyKey{})
	return result.RowsAffected, translate(result.Error)
}

type SettingsRepository struct {
	db *gorm.DB
}

func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := r.db.WithContext(ctx).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if translate(err) != ErrNotFound {
		return nil, translate(err)
	}
	settings = models.Settings{Version: 1, RequireDepositProof: true}
	if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
		return nil, translate(err)
	}
	return &settings, nil
}

func (r *SettingsRepository) Update(ctx context.Context, settings *models.Settings) error {
	return translate(r.db.WithContext(ctx).Save(settings).Error)
}
