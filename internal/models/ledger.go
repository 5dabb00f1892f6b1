package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finplay/settlement/pkg/errors"
)

// LedgerEntry is one immutable, signed balance mutation. Entries for a user,
// ordered by creation, form a running sum equal to BalanceAfter at each
// step. The current balance of a user is the BalanceAfter of their latest
// entry. Entries are never updated or deleted.
type LedgerEntry struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"entry_id"`
	UserID        string          `gorm:"type:varchar(36);not null;index:idx_ledger_user_created" json:"user_id"`
	Kind          string          `gorm:"type:varchar(20);not null" json:"entry_kind"`
	Delta         decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"delta"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balance_after"`
	ReferenceID   string          `gorm:"type:varchar(36);index" json:"reference_id"`
	ReferenceType string          `gorm:"type:varchar(20)" json:"reference_type"`
	Description   string          `gorm:"type:text" json:"description"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index:idx_ledger_user_created" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Entry kind constants
const (
	EntryKindCredit  = "credit"
	EntryKindDebit   = "debit"
	EntryKindHold    = "hold"
	EntryKindRelease = "release"
	EntryKindRefund  = "refund"
)

// Reference type constants
const (
	ReferenceTypeOrder = "order"
	ReferenceTypePromo = "promo"
)

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	switch e.Kind {
	case EntryKindCredit, EntryKindDebit, EntryKindHold, EntryKindRelease, EntryKindRefund:
	default:
		return errors.New(errors.ErrCodeValidation, "invalid ledger entry kind")
	}
	if e.BalanceAfter.IsNegative() {
		return errors.New(errors.ErrCodeValidation, "balance_after must not be negative")
	}
	return nil
}
