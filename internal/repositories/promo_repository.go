package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finplay/settlement/internal/models"
)

type PromoRepository struct {
	db *gorm.DB
}

func (r *PromoRepository) CreateCode(ctx context.Context, code *models.PromoCode) error {
	return translate(r.db.WithContext(ctx).Create(code).Error)
}

func (r *PromoRepository) UpdateCode(ctx context.Context, code *models.PromoCode) error {
	return translate(r.db.WithContext(ctx).Save(code).Error)
}

func (r *PromoRepository) GetCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var pc models.PromoCode
	if err := r.db.WithContext(ctx).First(&pc, "code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &pc, nil
}

// LockCode row-locks the code for the enclosing transaction, serializing
// concurrent redemptions against the remaining-uses counter.
func (r *PromoRepository) LockCode(ctx context.Context, id string) (*models.PromoCode, error) {
	var pc models.PromoCode
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&pc, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &pc, nil
}

func (r *PromoRepository) ListCodes(ctx context.Context) ([]models.PromoCode, error) {
	var codes []models.PromoCode
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&codes).Error
	return codes, translate(err)
}

func (r *PromoRepository) HasRedemption(ctx context.Context, userID, codeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PromoRedemption{}).
		Where("user_id = ? AND code_id = ?", userID, codeID).
		Count(&count).Error
	return count > 0, translate(err)
}

func (r *PromoRepository) CreateRedemption(ctx context.Context, redemption *models.PromoRedemption) error {
	return translate(r.db.WithContext(ctx).Create(redemption).Error)
}

func (r *PromoRepository) IncrementRedeemed(ctx context.Context, codeID string) error {
	return translate(r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ?", codeID).
		Update("redeemed_count", gorm.Expr("redeemed_count + 1")).Error)
}
