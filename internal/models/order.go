package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finplay/settlement/pkg/errors"
)

// Order is a single funds-affecting or game-affecting request. Orders are
// never deleted; they are created pending (or already executed for admin
// manual adjustments) and decided exactly once.
type Order struct {
	ID        string          `gorm:"primaryKey;type:varchar(36)" json:"order_id"`
	UserID    string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Type      string          `gorm:"type:varchar(20);not null;index" json:"order_type"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Status    string          `gorm:"type:varchar(30);not null;index" json:"status"`
	Metadata  JSONMap         `gorm:"type:text" json:"metadata,omitempty"`
	Reason    string          `gorm:"type:text" json:"reason,omitempty"`
	DecidedBy string          `gorm:"type:varchar(100)" json:"decided_by,omitempty"`
	DecidedAt *time.Time      `json:"decided_at,omitempty"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// Order type constants
const (
	OrderTypeDeposit       = "deposit"
	OrderTypeWithdrawal    = "withdrawal"
	OrderTypeGameLoad      = "game_load"
	OrderTypeRedemption    = "redemption"
	OrderTypeAdminLoad     = "admin_load"
	OrderTypeAdminWithdraw = "admin_withdraw"
)

// Order status constants
const (
	OrderStatusPending       = "pending"
	OrderStatusAwaitingProof = "awaiting_payment_proof"
	OrderStatusApproved      = "approved_executed"
	OrderStatusRejected      = "rejected"
	OrderStatusCancelled     = "cancelled"
)

// Decision actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// SystemActor is recorded as decided_by for auto-approved orders.
const SystemActor = "system"

// ClientOrderTypes are the types clients may submit through the public API.
// Admin manual adjustments bypass the approval queue entirely.
var ClientOrderTypes = []string{
	OrderTypeDeposit,
	OrderTypeWithdrawal,
	OrderTypeGameLoad,
	OrderTypeRedemption,
}

func IsClientOrderType(t string) bool {
	for _, ct := range ClientOrderTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// Terminal reports whether the order has reached a final status.
// No transition is ever permitted out of a terminal status.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusApproved, OrderStatusRejected, OrderStatusCancelled:
		return true
	}
	return false
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	switch o.Type {
	case OrderTypeDeposit, OrderTypeWithdrawal, OrderTypeGameLoad,
		OrderTypeRedemption, OrderTypeAdminLoad, OrderTypeAdminWithdraw:
	default:
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("invalid order type: %s", o.Type))
	}
	if !o.Amount.IsPositive() {
		return errors.New(errors.ErrCodeValidation, "amount must be greater than zero")
	}
	return nil
}

// JSONMap stores free-form string metadata as a JSON text column.
type JSONMap map[string]string

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return fmt.Errorf("unsupported type for JSONMap: %T", value)
}
