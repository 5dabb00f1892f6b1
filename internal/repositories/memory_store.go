package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/models"
)

// MemoryStore implements Store without a database. It backs local
// development runs and the concurrency tests. A Transaction holds the
// store lock for its whole duration and works on a copy of the state that
// is swapped in only on success, which gives the same all-or-nothing
// semantics as the database transaction in GormStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memoryData
	inTx bool
}

type memoryData struct {
	users       map[string]models.User
	orders      map[string]models.Order
	ledger      []models.LedgerEntry
	promoCodes  map[string]models.PromoCode
	redemptions map[string]models.PromoRedemption
	tiers       map[string]models.ReferralTier
	campaigns   map[string]models.GlobalCampaign
	overrides   map[string]models.ClientOverride
	audit       []models.AuditLog
	keys        map[string]models.IdempotencyKey
	settings    models.Settings
	hasSettings bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		users:       make(map[string]models.User),
		orders:      make(map[string]models.Order),
		promoCodes:  make(map[string]models.PromoCode),
		redemptions: make(map[string]models.PromoRedemption),
		tiers:       make(map[string]models.ReferralTier),
		campaigns:   make(map[string]models.GlobalCampaign),
		overrides:   make(map[string]models.ClientOverride),
		keys:        make(map[string]models.IdempotencyKey),
	}}
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		users:       make(map[string]models.User, len(d.users)),
		orders:      make(map[string]models.Order, len(d.orders)),
		ledger:      append([]models.LedgerEntry(nil), d.ledger...),
		promoCodes:  make(map[string]models.PromoCode, len(d.promoCodes)),
		redemptions: make(map[string]models.PromoRedemption, len(d.redemptions)),
		tiers:       make(map[string]models.ReferralTier, len(d.tiers)),
		campaigns:   make(map[string]models.GlobalCampaign, len(d.campaigns)),
		overrides:   make(map[string]models.ClientOverride, len(d.overrides)),
		audit:       append([]models.AuditLog(nil), d.audit...),
		keys:        make(map[string]models.IdempotencyKey, len(d.keys)),
		settings:    d.settings,
		hasSettings: d.hasSettings,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.promoCodes {
		c.promoCodes[k] = v
	}
	for k, v := range d.redemptions {
		c.redemptions[k] = v
	}
	for k, v := range d.tiers {
		c.tiers[k] = v
	}
	for k, v := range d.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range d.overrides {
		c.overrides[k] = v
	}
	for k, v := range d.keys {
		c.keys[k] = v
	}
	return c
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := s.data.clone()
	tx := &MemoryStore{data: clone, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = clone
	return nil
}

func (s *MemoryStore) read(fn func(d *memoryData) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *MemoryStore) write(fn func(d *memoryData) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *MemoryStore) Users() UserStore         { return &memUsers{s} }
func (s *MemoryStore) Orders() OrderStore       { return &memOrders{s} }
func (s *MemoryStore) Ledger() LedgerStore      { return &memLedger{s} }
func (s *MemoryStore) Promos() PromoStore       { return &memPromos{s} }
func (s *MemoryStore) Referrals() ReferralStore { return &memReferrals{s} }
func (s *MemoryStore) Audit() AuditStore        { return &memAudit{s} }
func (s *MemoryStore) Keys() KeyStore           { return &memKeys{s} }
func (s *MemoryStore) Settings() SettingsStore  { return &memSettings{s} }

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// ---- users ----

type memUsers struct{ s *MemoryStore }

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	return m.s.write(func(d *memoryData) error {
		if _, ok := d.users[user.ID]; ok {
			return ErrDuplicate
		}
		for _, u := range d.users {
			if u.Username == user.Username {
				return ErrDuplicate
			}
		}
		user.CreatedAt = stamp(user.CreatedAt)
		user.UpdatedAt = user.CreatedAt
		d.users[user.ID] = *user
		return nil
	})
}

func (m *memUsers) Get(ctx context.Context, id string) (*models.User, error) {
	var out *models.User
	err := m.s.read(func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var out *models.User
	err := m.s.read(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Username == username {
				u := u
				out = &u
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (m *memUsers) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var out *models.User
	err := m.s.read(func(d *memoryData) error {
		for _, u := range d.users {
			if u.ReferralCode == code {
				u := u
				out = &u
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

// Lock is equivalent to Get here: the transaction already holds the store
// lock, which serializes all balance writes.
func (m *memUsers) Lock(ctx context.Context, id string) (*models.User, error) {
	return m.Get(ctx, id)
}

func (m *memUsers) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return m.s.write(func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return ErrNotFound
		}
		u.Balance = balance
		u.UpdatedAt = time.Now().UTC()
		d.users[id] = u
		return nil
	})
}

func (m *memUsers) CountReferredBy(ctx context.Context, referrerID string) (int64, error) {
	var count int64
	err := m.s.read(func(d *memoryData) error {
		for _, u := range d.users {
			if u.ReferredBy != nil && *u.ReferredBy == referrerID {
				count++
			}
		}
		return nil
	})
	return count, err
}

// ---- orders ----

type memOrders struct{ s *MemoryStore }

func (m *memOrders) Create(ctx context.Context, order *models.Order) error {
	return m.s.write(func(d *memoryData) error {
		if _, ok := d.orders[order.ID]; ok {
			return ErrDuplicate
		}
		order.CreatedAt = stamp(order.CreatedAt)
		order.UpdatedAt = order.CreatedAt
		d.orders[order.ID] = *order
		return nil
	})
}

func (m *memOrders) Get(ctx context.Context, id string) (*models.Order, error) {
	var out *models.Order
	err := m.s.read(func(d *memoryData) error {
		o, ok := d.orders[id]
		if !ok {
			return ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (m *memOrders) Decide(ctx context.Context, id string, fromStatuses []string, decision OrderDecision) error {
	return m.s.write(func(d *memoryData) error {
		o, ok := d.orders[id]
		if !ok {
			return ErrNotFound
		}
		matched := false
		for _, st := range fromStatuses {
			if o.Status == st {
				matched = true
				break
			}
		}
		if !matched {
			return ErrStaleRecord
		}
		o.Status = decision.Status
		o.Reason = decision.Reason
		o.DecidedBy = decision.DecidedBy
		decidedAt := decision.DecidedAt
		o.DecidedAt = &decidedAt
		o.UpdatedAt = decidedAt
		d.orders[id] = o
		return nil
	})
}

func (m *memOrders) UpdateStatus(ctx context.Context, id, from, to string) error {
	return m.s.write(func(d *memoryData) error {
		o, ok := d.orders[id]
		if !ok {
			return ErrNotFound
		}
		if o.Status != from {
			return ErrStaleRecord
		}
		o.Status = to
		o.UpdatedAt = time.Now().UTC()
		d.orders[id] = o
		return nil
	})
}

func (m *memOrders) SetMetadata(ctx context.Context, id string, metadata models.JSONMap) error {
	return m.s.write(func(d *memoryData) error {
		o, ok := d.orders[id]
		if !ok {
			return ErrNotFound
		}
		o.Metadata = metadata
		o.UpdatedAt = time.Now().UTC()
		d.orders[id] = o
		return nil
	})
}

func (m *memOrders) ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	var out []models.Order
	err := m.s.read(func(d *memoryData) error {
		for _, o := range d.orders {
			if o.UserID == userID {
				out = append(out, o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (m *memOrders) ListByStatus(ctx context.Context, statuses []string, limit int) ([]models.Order, error) {
	var out []models.Order
	err := m.s.read(func(d *memoryData) error {
		for _, o := range d.orders {
			for _, st := range statuses {
				if o.Status == st {
					out = append(out, o)
					break
				}
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (m *memOrders) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var out []models.Order
	err := m.s.read(func(d *memoryData) error {
		for _, o := range d.orders {
			if (o.Status == models.OrderStatusPending || o.Status == models.OrderStatusAwaitingProof) &&
				o.CreatedAt.Before(cutoff) {
				out = append(out, o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// ---- ledger ----

type memLedger struct{ s *MemoryStore }

func (m *memLedger) Append(ctx context.Context, entry *models.LedgerEntry) error {
	return m.s.write(func(d *memoryData) error {
		entry.CreatedAt = stamp(entry.CreatedAt)
		d.ledger = append(d.ledger, *entry)
		return nil
	})
}

func (m *memLedger) ListByUser(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	err := m.s.read(func(d *memoryData) error {
		for i := len(d.ledger) - 1; i >= 0; i-- {
			if d.ledger[i].UserID == userID {
				out = append(out, d.ledger[i])
				if limit > 0 && len(out) == limit {
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func (m *memLedger) ListByReference(ctx context.Context, refType, refID string) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	err := m.s.read(func(d *memoryData) error {
		for _, e := range d.ledger {
			if e.ReferenceType == refType && e.ReferenceID == refID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// ---- promos ----

type memPromos struct{ s *MemoryStore }

func redemptionKey(userID, codeID string) string {
	return userID + "|" + codeID
}

func (m *memPromos) CreateCode(ctx context.Context, code *models.PromoCode) error {
	return m.s.write(func(d *memoryData) error {
		for _, pc := range d.promoCodes {
			if strings.EqualFold(pc.Code, code.Code) {
				return ErrDuplicate
			}
		}
		code.CreatedAt = stamp(code.CreatedAt)
		code.UpdatedAt = code.CreatedAt
		d.promoCodes[code.ID] = *code
		return nil
	})
}

func (m *memPromos) UpdateCode(ctx context.Context, code *models.PromoCode) error {
	return m.s.write(func(d *memoryData) error {
		if _, ok := d.promoCodes[code.ID]; !ok {
			return ErrNotFound
		}
		code.UpdatedAt = time.Now().UTC()
		d.promoCodes[code.ID] = *code
		return nil
	})
}

func (m *memPromos) GetCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var out *models.PromoCode
	err := m.s.read(func(d *memoryData) error {
		for _, pc := range d.promoCodes {
			if pc.Code == code {
				pc := pc
				out = &pc
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (m *memPromos) LockCode(ctx context.Context, id string) (*models.PromoCode, error) {
	var out *models.PromoCode
	err := m.s.read(func(d *memoryData) error {
		pc, ok := d.promoCodes[id]
		if !ok {
			return ErrNotFound
		}
		out = &pc
		return nil
	})
	return out, err
}

func (m *memPromos) ListCodes(ctx context.Context) ([]models.PromoCode, error) {
	var out []models.PromoCode
	err := m.s.read(func(d *memoryData) error {
		for _, pc := range d.promoCodes {
			out = append(out, pc)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (m *memPromos) HasRedemption(ctx context.Context, userID, codeID string) (bool, error) {
	var found bool
	err := m.s.read(func(d *memoryData) error {
		_, found = d.redemptions[redemptionKey(userID, codeID)]
		return nil
	})
	return found, err
}

func (m *memPromos) CreateRedemption(ctx context.Context, redemption *models.PromoRedemption) error {
	return m.s.write(func(d *memoryData) error {
		key := redemptionKey(redemption.UserID, redemption.CodeID)
		if _, ok := d.redemptions[key]; ok {
			return ErrDuplicate
		}
		redemption.RedeemedAt = stamp(redemption.RedeemedAt)
		d.redemptions[key] = *redemption
		return nil
	})
}

func (m *memPromos) IncrementRedeemed(ctx context.Context, codeID string) error {
	return m.s.write(func(d *memoryData) error {
		pc, ok := d.promoCodes[codeID]
		if !ok {
			return ErrNotFound
		}
		pc.RedeemedCount++
		pc.UpdatedAt = time.Now().UTC()
		d.promoCodes[codeID] = pc
		return nil
	})
}

// ---- referrals ----

type memReferrals struct{ s *MemoryStore }

func (m *memReferrals) ListTiers(ctx context.Context) ([]models.ReferralTier, error) {
	var out []models.ReferralTier
	err := m.s.read(func(d *memoryData) error {
		for _, t := range d.tiers {
			out = append(out, t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].MinReferrals < out[j].MinReferrals })
	return out, err
}

func (m *memReferrals) SaveTier(ctx context.Context, tier *models.ReferralTier) error {
	return m.s.write(func(d *memoryData) error {
		tier.CreatedAt = stamp(tier.CreatedAt)
		tier.UpdatedAt = time.Now().UTC()
		d.tiers[tier.ID] = *tier
		return nil
	})
}

func (m *memReferrals) TierForCount(ctx context.Context, count int64) (*models.ReferralTier, error) {
	var best *models.ReferralTier
	err := m.s.read(func(d *memoryData) error {
		for _, t := range d.tiers {
			if !t.IsActive || !t.Matches(count) {
				continue
			}
			if best == nil || t.MinReferrals > best.MinReferrals {
				t := t
				best = &t
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (m *memReferrals) CreateCampaign(ctx context.Context, campaign *models.GlobalCampaign) error {
	return m.s.write(func(d *memoryData) error {
		if _, ok := d.campaigns[campaign.ID]; ok {
			return ErrDuplicate
		}
		campaign.CreatedAt = stamp(campaign.CreatedAt)
		campaign.UpdatedAt = campaign.CreatedAt
		d.campaigns[campaign.ID] = *campaign
		return nil
	})
}

func (m *memReferrals) UpdateCampaign(ctx context.Context, campaign *models.GlobalCampaign) error {
	return m.s.write(func(d *memoryData) error {
		if _, ok := d.campaigns[campaign.ID]; !ok {
			return ErrNotFound
		}
		campaign.UpdatedAt = time.Now().UTC()
		d.campaigns[campaign.ID] = *campaign
		return nil
	})
}

func (m *memReferrals) DeleteCampaign(ctx context.Context, id string) error {
	return m.s.write(func(d *memoryData) error {
		delete(d.campaigns, id)
		return nil
	})
}

func (m *memReferrals) ListCampaigns(ctx context.Context) ([]models.GlobalCampaign, error) {
	var out []models.GlobalCampaign
	err := m.s.read(func(d *memoryData) error {
		for _, c := range d.campaigns {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, err
}

func (m *memReferrals) ActiveCampaign(ctx context.Context, at time.Time) (*models.GlobalCampaign, error) {
	var out *models.GlobalCampaign
	err := m.s.read(func(d *memoryData) error {
		for _, c := range d.campaigns {
			if c.ActiveAt(at) {
				c := c
				out = &c
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (m *memReferrals) CountOverlappingCampaigns(ctx context.Context, start, end time.Time, excludeID string) (int64, error) {
	var count int64
	err := m.s.read(func(d *memoryData) error {
		for _, c := range d.campaigns {
			if c.ID == excludeID || !c.IsActive {
				continue
			}
			if c.StartDate.Before(end) && c.EndDate.After(start) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (m *memReferrals) UpsertOverride(ctx context.Context, override *models.ClientOverride) error {
	return m.s.write(func(d *memoryData) error {
		if existing, ok := d.overrides[override.UserID]; ok {
			override.ID = existing.ID
			override.CreatedAt = existing.CreatedAt
		} else {
			override.CreatedAt = stamp(override.CreatedAt)
		}
		override.UpdatedAt = time.Now().UTC()
		d.overrides[override.UserID] = *override
		return nil
	})
}

func (m *memReferrals) DeleteOverride(ctx context.Context, userID string) error {
	return m.s.write(func(d *memoryData) error {
		delete(d.overrides, userID)
		return nil
	})
}

func (m *memReferrals) ListOverrides(ctx context.Context) ([]models.ClientOverride, error) {
	var out []models.ClientOverride
	err := m.s.read(func(d *memoryData) error {
		for _, o := range d.overrides {
			out = append(out, o)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (m *memReferrals) GetOverride(ctx context.Context, userID string) (*models.ClientOverride, error) {
	var out *models.ClientOverride
	err := m.s.read(func(d *memoryData) error {
		o, ok := d.overrides[userID]
		if !ok {
			return ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

// ---- audit ----

type memAudit struct{ s *MemoryStore }

func (m *memAudit) Append(ctx context.Context, log *models.AuditLog) error {
	return m.s.write(func(d *memoryData) error {
		log.CreatedAt = stamp(log.CreatedAt)
		d.audit = append(d.audit, *log)
		return nil
	})
}

func (m *memAudit) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := m.s.read(func(d *memoryData) error {
		for i := len(d.audit) - 1; i >= 0; i-- {
			out = append(out, d.audit[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (m *memAudit) ListByResource(ctx context.Context, resourceType, resourceID string) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := m.s.read(func(d *memoryData) error {
		for _, l := range d.audit {
			if l.ResourceType == resourceType && l.ResourceID == resourceID {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

// ---- idempotency keys ----

type memKeys struct{ s *MemoryStore }

func idemKey(scope, key string) string {
	return scope + "|" + key
}

func (m *memKeys) Get(ctx context.Context, scope, key string) (*models.IdempotencyKey, error) {
	var out *models.IdempotencyKey
	err := m.s.read(func(d *memoryData) error {
		rec, ok := d.keys[idemKey(scope, key)]
		if !ok {
			return ErrNotFound
		}
		out = &rec
		return nil
	})
	return out, err
}

func (m *memKeys) Create(ctx context.Context, record *models.IdempotencyKey) error {
	return m.s.write(func(d *memoryData) error {
		k := idemKey(record.Scope, record.Key)
		if _, ok := d.keys[k]; ok {
			return ErrDuplicate
		}
		record.CreatedAt = stamp(record.CreatedAt)
		d.keys[k] = *record
		return nil
	})
}

func (m *memKeys) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := m.s.write(func(d *memoryData) error {
		for k, rec := range d.keys {
			if rec.CreatedAt.Before(cutoff) {
				delete(d.keys, k)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// ---- settings ----

type memSettings struct{ s *MemoryStore }

func (m *memSettings) Get(ctx context.Context) (*models.Settings, error) {
	var out *models.Settings
	err := m.s.write(func(d *memoryData) error {
		if !d.hasSettings {
			d.settings = models.Settings{ID: 1, Version: 1, RequireDepositProof: true, UpdatedAt: time.Now().UTC()}
			d.hasSettings = true
		}
		settings := d.settings
		out = &settings
		return nil
	})
	return out, err
}

func (m *memSettings) Update(ctx context.Context, settings *models.Settings) error {
	return m.s.write(func(d *memoryData) error {
		settings.UpdatedAt = time.Now().UTC()
		d.settings = *settings
		d.hasSettings = true
		return nil
	})
}
