package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// GormStore implements Store on a gorm Postgres handle. A Transaction
// rebinds every repository onto the transaction handle, so nested store
// calls inside fn share the same database transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Users() UserStore         { return &UserRepository{db: s.db} }
func (s *GormStore) Orders() OrderStore       { return &OrderRepository{db: s.db} }
func (s *GormStore) Ledger() LedgerStore      { return &LedgerRepository{db: s.db} }
func (s *GormStore) Promos() PromoStore       { return &PromoRepository{db: s.db} }
func (s *GormStore) Referrals() ReferralStore { return &ReferralRepository{db: s.db} }
func (s *GormStore) Audit() AuditStore        { return &AuditRepository{db: s.db} }
func (s *GormStore) Keys() KeyStore           { return &KeyRepository{db: s.db} }
func (s *GormStore) Settings() SettingsStore  { return &SettingsRepository{db: s.db} }

// translate maps gorm errors onto the store sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
