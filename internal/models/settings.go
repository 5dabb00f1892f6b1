package models

import "time"

// Settings is the single-row, versioned approval configuration.
// Approval decisions never read these values ambiently; a SettingsSnapshot
// is loaded explicitly and passed in, so a decision is deterministic given
// its inputs.
type Settings struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	Version              int       `gorm:"default:1;not null" json:"version"`
	AutoApproveDeposits  bool      `gorm:"default:false;not null" json:"auto_approve_deposits"`
	AutoApproveGameLoads bool      `gorm:"default:false;not null" json:"auto_approve_game_loads"`
	RequireDepositProof  bool      `gorm:"default:true;not null" json:"require_deposit_proof"`
	UpdatedBy            string    `gorm:"type:varchar(36)" json:"updated_by"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Settings) TableName() string {
	return "settings"
}

// SettingsSnapshot is the value copy handed to the order and approval
// services.
type SettingsSnapshot struct {
	Version              int  `json:"version"`
	AutoApproveDeposits  bool `json:"auto_approve_deposits"`
	AutoApproveGameLoads bool `json:"auto_approve_game_loads"`
	RequireDepositProof  bool `json:"require_deposit_proof"`
}

// Snapshot returns a detached value copy of the settings row.
func (s *Settings) Snapshot() SettingsSnapshot {
	return SettingsSnapshot{
		Version:              s.Version,
		AutoApproveDeposits:  s.AutoApproveDeposits,
		AutoApproveGameLoads: s.AutoApproveGameLoads,
		RequireDepositProof:  s.RequireDepositProof,
	}
}

// IdempotencyKey maps a client-supplied (scope, key) pair to the order it
// created. Uniqueness over (scope, key) makes create-order retries safe.
// Keys are swept after the configured retention window.
type IdempotencyKey struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Scope     string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_idem_scope_key" json:"scope"`
	Key       string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_idem_scope_key" json:"key"`
	OrderID   string    `gorm:"type:varchar(36);not null" json:"order_id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}
