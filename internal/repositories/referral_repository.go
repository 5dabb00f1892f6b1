package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finplay/settlement/internal/models"
)

type ReferralRepository struct {
	db *gorm.DB
}

func (r *ReferralRepository) ListTiers(ctx context.Context) ([]models.ReferralTier, error) {
	var tiers []models.ReferralTier
	err := r.db.WithContext(ctx).Order("min_referrals ASC").Find(&tiers).Error
	return tiers, translate(err)
}

func (r *ReferralRepository) SaveTier(ctx context.Context, tier *models.ReferralTier) error {
	return translate(r.db.WithContext(ctx).Save(tier).Error)
}

func (r *ReferralRepository) TierForCount(ctx context.Context, count int64) (*models.ReferralTier, error) {
	var tier models.ReferralTier
	err := r.db.WithContext(ctx).
		Where("is_active = TRUE AND min_referrals <= ? AND (max_referrals IS NULL OR max_referrals >= ?)", count, count).
		Order("min_referrals DESC").
		First(&tier).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tier, nil
}

func (r *ReferralRepository) CreateCampaign(ctx context.Context, campaign *models.GlobalCampaign) error {
	return translate(r.db.WithContext(ctx).Create(campaign).Error)
}

func (r *ReferralRepository) UpdateCampaign(ctx context.Context, campaign *models.GlobalCampaign) error {
	return translate(r.db.WithContext(ctx).Save(campaign).Error)
}

func (r *ReferralRepository) DeleteCampaign(ctx context.Context, id string) error {
	return translate(r.db.WithContext(ctx).Delete(&models.GlobalCampaign{}, "id = ?", id).Error)
}

func (r *ReferralRepository) ListCampaigns(ctx context.Context) ([]models.GlobalCampaign, error) {
	var campaigns []models.GlobalCampaign
	err := r.db.WithContext(ctx).Order("start_date DESC").Find(&campaigns).Error
	return campaigns, translate(err)
}

func (r *ReferralRepository) ActiveCampaign(ctx context.Context, at time.Time) (*models.GlobalCampaign, error) {
	var campaign models.GlobalCampaign
	err := r.db.WithContext(ctx).
		Where("is_active = TRUE AND start_date <= ? AND end_date > ?", at, at).
		First(&campaign).Error
	if err != nil {
		return nil, translate(err)
	}
	return &campaign, nil
}

func (r *ReferralRepository) CountOverlappingCampaigns(ctx context.Context, start, end time.Time, excludeID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GlobalCampaign{}).
		Where("is_active = TRUE AND start_date < ? AND end_date > ? AND id <> ?", end, start, excludeID).
		Count(&count).Error
	return count, translate(err)
}

func (r *ReferralRepository) UpsertOverride(ctx context.Context, override *models.ClientOverride) error {
	return translate(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"bonus_percent", "expires_at", "reason", "is_active", "updated_at",
			}),
		}).
		Create(override).Error)
}

func (r *ReferralRepository) DeleteOverride(ctx context.Context, userID string) error {
	return translate(r.db.WithContext(ctx).Delete(&models.ClientOverride{}, "user_id = ?", userID).Error)
}

func (r *ReferralRepository) ListOverrides(ctx context.Context) ([]models.ClientOverride, error) {
	var overrides []models.ClientOverride
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&overrides).Error
	return overrides, translate(err)
}

func (r *ReferralRepository) GetOverride(ctx context.Context, userID string) (*models.ClientOverride, error) {
	var override models.ClientOverride
	if err := r.db.WithContext(ctx).First(&override, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &override, nil
}
