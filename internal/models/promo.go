package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromoCode is an admin-managed credit voucher with a bounded number of
// total redemptions and at most one redemption per user.
type PromoCode struct {
	ID             string          `gorm:"primaryKey;type:varchar(36)" json:"code_id"`
	Code           string          `gorm:"uniqueIndex;type:varchar(50);not null" json:"code"`
	CreditAmount   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"credit_amount"`
	MaxRedemptions int             `gorm:"not null" json:"max_redemptions"`
	RedeemedCount  int             `gorm:"default:0;not null" json:"redeemed_count"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	IsActive       bool            `gorm:"default:true;not null" json:"is_active"`
	CreatedBy      string          `gorm:"type:varchar(36)" json:"created_by"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PromoCode) TableName() string {
	return "promo_codes"
}

// Expired reports whether the code is past its expiry at the given time.
func (c *PromoCode) Expired(at time.Time) bool {
	return c.ExpiresAt != nil && !at.Before(*c.ExpiresAt)
}

// Exhausted reports whether the code has no redemptions left.
func (c *PromoCode) Exhausted() bool {
	return c.RedeemedCount >= c.MaxRedemptions
}

// PromoRedemption is evidence that a user consumed a promo code.
// The (user_id, code_id) pair is unique: at most one redemption per user
// per code, enforced by the store.
type PromoRedemption struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"redemption_id"`
	UserID       string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_promo_user_code" json:"user_id"`
	CodeID       string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_promo_user_code" json:"code_id"`
	CreditAmount decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"credit_amount"`
	RedeemedAt   time.Time       `gorm:"autoCreateTime" json:"redeemed_at"`
}

func (PromoRedemption) TableName() string {
	return "promo_redemptions"
}
