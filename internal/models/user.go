package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finplay/settlement/pkg/errors"
)

type User struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Username    string          `gorm:"uniqueIndex;type:varchar(100);not null" json:"username"`
	DisplayName string          `gorm:"type:varchar(255)" json:"display_name"`
	// Balance mirrors BalanceAfter of the user's latest ledger entry.
	// It is only written inside the same transaction that appends the entry.
	Balance      decimal.Decimal `gorm:"type:numeric(20,2);default:0;not null" json:"balance"`
	ReferralCode string          `gorm:"uniqueIndex;type:varchar(16)" json:"referral_code"`
	ReferredBy   *string         `gorm:"type:varchar(36);index" json:"referred_by,omitempty"`
	IsAdmin      bool            `gorm:"default:false;not null" json:"is_admin"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Username == "" {
		return errors.New(errors.ErrCodeValidation, "username is required")
	}
	if u.Balance.IsNegative() {
		return errors.New(errors.ErrCodeValidation, "balance must not be negative")
	}
	return nil
}
