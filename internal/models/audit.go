package models

import "time"

// AuditLog is an immutable record of a state-changing or config-changing
// action. Append-only; rows are never updated.
type AuditLog struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"log_id"`
	ActorID      string    `gorm:"type:varchar(36);index" json:"actor_id"`
	ActorName    string    `gorm:"type:varchar(100)" json:"actor_name"`
	Action       string    `gorm:"type:varchar(100);not null;index" json:"action"`
	ResourceType string    `gorm:"type:varchar(50);not null" json:"resource_type"`
	ResourceID   string    `gorm:"type:varchar(36);index" json:"resource_id"`
	Details      JSONMap   `gorm:"type:text" json:"details,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// Audit action constants
const (
	AuditOrderCreated      = "order.created"
	AuditOrderDecided      = "order.decided"
	AuditOrderCancelled    = "order.cancelled"
	AuditOrderProof        = "order.proof_submitted"
	AuditOrderStale        = "order.stale_pending"
	AuditAdminLoad         = "admin.balance.load"
	AuditAdminWithdraw     = "admin.balance.withdraw"
	AuditPromoRedeemed     = "promo.redeemed"
	AuditCommissionPaid    = "referral.commission_paid"
	AuditCommissionNoTier  = "referral.no_tier_matched"
	AuditConfigChanged     = "config.changed"
	AuditCampaignCreated   = "referral.campaign_created"
	AuditOverrideChanged   = "referral.override_changed"
	AuditTierChanged       = "referral.tier_changed"
	AuditPromoCodeChanged  = "promo.code_changed"
	AuditSettingsChanged   = "settings.changed"
)
