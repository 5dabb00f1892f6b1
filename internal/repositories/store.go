package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/models"
)

// Sentinel errors returned by store implementations. Services translate
// these into AppError codes for callers.
var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("duplicate record")
	ErrStaleRecord = errors.New("record changed concurrently")
)

// Store bundles the persistence surface of the settlement engine.
// Transaction runs fn against a store view whose writes either all commit
// or all roll back; every financial mutation in the engine happens inside
// one. The gorm implementation maps this onto a database transaction, the
// in-memory implementation onto a copy-on-write swap under a single lock.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	Users() UserStore
	Orders() OrderStore
	Ledger() LedgerStore
	Promos() PromoStore
	Referrals() ReferralStore
	Audit() AuditStore
	Keys() KeyStore
	Settings() SettingsStore
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	// Lock loads the user with its balance row locked for the duration of
	// the surrounding transaction. All ledger writes for a user go through
	// this lock, which totally orders the user's entries.
	Lock(ctx context.Context, id string) (*models.User, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	CountReferredBy(ctx context.Context, referrerID string) (int64, error)
}

// OrderDecision carries the terminal fields written by a decision.
type OrderDecision struct {
	Status    string
	Reason    string
	DecidedBy string
	DecidedAt time.Time
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	// Decide atomically moves the order to a terminal status if and only
	// if its current status is one of fromStatuses. Returns ErrStaleRecord
	// when the guard fails, which callers report as OrderAlreadyDecided.
	Decide(ctx context.Context, id string, fromStatuses []string, decision OrderDecision) error
	// UpdateStatus moves between non-terminal statuses (payment proof
	// submission) with the same compare-and-swap guard.
	UpdateStatus(ctx context.Context, id, from, to string) error
	SetMetadata(ctx context.Context, id string, metadata models.JSONMap) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error)
	ListByStatus(ctx context.Context, statuses []string, limit int) ([]models.Order, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type LedgerStore interface {
	Append(ctx context.Context, entry *models.LedgerEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)
	ListByReference(ctx context.Context, refType, refID string) ([]models.LedgerEntry, error)
}

type PromoStore interface {
	CreateCode(ctx context.Context, code *models.PromoCode) error
	UpdateCode(ctx context.Context, code *models.PromoCode) error
	GetCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	// LockCode loads the code row locked for the surrounding transaction,
	// serializing redemptions of the same code.
	LockCode(ctx context.Context, id string) (*models.PromoCode, error)
	ListCodes(ctx context.Context) ([]models.PromoCode, error)
	HasRedemption(ctx context.Context, userID, codeID string) (bool, error)
	// CreateRedemption returns ErrDuplicate when the (user, code) pair
	// already exists.
	CreateRedemption(ctx context.Context, redemption *models.PromoRedemption) error
	IncrementRedeemed(ctx context.Context, codeID string) error
}

type ReferralStore interface {
	ListTiers(ctx context.Context) ([]models.ReferralTier, error)
	SaveTier(ctx context.Context, tier *models.ReferralTier) error
	TierForCount(ctx context.Context, count int64) (*models.ReferralTier, error)

	CreateCampaign(ctx context.Context, campaign *models.GlobalCampaign) error
	UpdateCampaign(ctx context.Context, campaign *models.GlobalCampaign) error
	DeleteCampaign(ctx context.Context, id string) error
	ListCampaigns(ctx context.Context) ([]models.GlobalCampaign, error)
	ActiveCampaign(ctx context.Context, at time.Time) (*models.GlobalCampaign, error)
	// CountOverlappingCampaigns counts active campaigns intersecting the
	// [start, end) window, excluding excludeID.
	CountOverlappingCampaigns(ctx context.Context, start, end time.Time, excludeID string) (int64, error)

	UpsertOverride(ctx context.Context, override *models.ClientOverride) error
	DeleteOverride(ctx context.Context, userID string) error
	ListOverrides(ctx context.Context) ([]models.ClientOverride, error)
	GetOverride(ctx context.Context, userID string) (*models.ClientOverride, error)
}

type AuditStore interface {
	Append(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, limit int) ([]models.AuditLog, error)
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]models.AuditLog, error)
}

type KeyStore interface {
	Get(ctx context.Context, scope, key string) (*models.IdempotencyKey, error)
	// Create returns ErrDuplicate when (scope, key) is already present.
	Create(ctx context.Context, record *models.IdempotencyKey) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type SettingsStore interface {
	// Get returns the settings row, creating defaults if none exists.
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, settings *models.Settings) error
}
