package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralTier is one band of the tier ladder. Bands are ordered by
// MinReferrals and must not overlap; a nil MaxReferrals means unbounded.
type ReferralTier struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"tier_id"`
	Name         string          `gorm:"uniqueIndex;type:varchar(50);not null" json:"tier_name"`
	MinReferrals int             `gorm:"not null" json:"min_referrals"`
	MaxReferrals *int            `json:"max_referrals,omitempty"`
	BonusPercent decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"bonus_percentage"`
	Description  string          `gorm:"type:text" json:"description,omitempty"`
	IsActive     bool            `gorm:"default:true;not null" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReferralTier) TableName() string {
	return "referral_tiers"
}

// Matches reports whether the tier band covers the given referral count.
func (t *ReferralTier) Matches(count int64) bool {
	if count < int64(t.MinReferrals) {
		return false
	}
	return t.MaxReferrals == nil || count <= int64(*t.MaxReferrals)
}

// GlobalCampaign is a time-bounded bonus override applied to all
// referrers. At most one campaign may be active at any instant; overlap is
// rejected at creation time.
type GlobalCampaign struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"campaign_id"`
	Name         string          `gorm:"type:varchar(100);not null" json:"name"`
	BonusPercent decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"bonus_percentage"`
	StartDate    time.Time       `gorm:"not null;index" json:"start_date"`
	EndDate      time.Time       `gorm:"not null;index" json:"end_date"`
	Description  string          `gorm:"type:text" json:"description,omitempty"`
	IsActive     bool            `gorm:"default:true;not null" json:"is_active"`
	CreatedBy    string          `gorm:"type:varchar(36)" json:"created_by"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GlobalCampaign) TableName() string {
	return "referral_campaigns"
}

// ActiveAt reports whether the campaign applies at the given time.
func (c *GlobalCampaign) ActiveAt(at time.Time) bool {
	return c.IsActive && !at.Before(c.StartDate) && at.Before(c.EndDate)
}

// ClientOverride pins an individual referrer to a fixed bonus percentage.
// Highest resolution priority; one override per user.
type ClientOverride struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"override_id"`
	UserID       string          `gorm:"uniqueIndex;type:varchar(36);not null" json:"user_id"`
	BonusPercent decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"bonus_percentage"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Reason       string          `gorm:"type:text;not null" json:"reason"`
	IsActive     bool            `gorm:"default:true;not null" json:"is_active"`
	CreatedBy    string          `gorm:"type:varchar(36)" json:"created_by"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ClientOverride) TableName() string {
	return "referral_client_overrides"
}

// ActiveAt reports whether the override applies at the given time.
func (o *ClientOverride) ActiveAt(at time.Time) bool {
	if !o.IsActive {
		return false
	}
	return o.ExpiresAt == nil || at.Before(*o.ExpiresAt)
}

// Commission resolution sources, in priority order.
const (
	BonusSourceOverride = "individual_override"
	BonusSourceCampaign = "global_campaign"
	BonusSourceTier     = "tier"
	BonusSourceNone     = "none"
)
