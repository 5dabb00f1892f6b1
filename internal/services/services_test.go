package services

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type testEnv struct {
	store     *repositories.MemoryStore
	users     *UserService
	orders    *OrderService
	approval  *ApprovalService
	referrals *ReferralService
	promos    *PromoService
	settings  *SettingsService
	ledger    *LedgerService
	audit     *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repositories.NewMemoryStore()
	referrals := NewReferralService(store)
	approval := NewApprovalService(store, referrals, NopNotifier{})
	return &testEnv{
		store:     store,
		users:     NewUserService(store),
		orders:    NewOrderService(store, approval, NopNotifier{}),
		approval:  approval,
		referrals: referrals,
		promos:    NewPromoService(store),
		settings:  NewSettingsService(store),
		ledger:    NewLedgerService(store),
		audit:     NewAuditService(store),
	}
}

// mustUser registers a user and, when balance is positive, funds the
// account through an admin load so the ledger stays consistent with the
// balance.
func (e *testEnv) mustUser(t *testing.T, username, balance string) *models.User {
	t.Helper()
	return e.mustReferredUser(t, username, balance, "")
}

func (e *testEnv) mustReferredUser(t *testing.T, username, balance, referralCode string) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := e.users.Register(ctx, username, username, referralCode)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	amount := mustDecimal(t, balance)
	if amount.IsPositive() {
		if _, err := e.approval.AdminAdjust(ctx, "admin-1", "admin", user.ID, amount, true, "test funding"); err != nil {
			t.Fatalf("fund %s: %v", username, err)
		}
	}
	return user
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func (e *testEnv) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	b, err := e.ledger.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b
}

func assertBalance(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("balance = %s, want %s", got.StringFixed(2), want)
	}
}

// assertLedgerConsistent checks the two ledger invariants for a user:
// every entry's BalanceAfter equals the previous BalanceAfter plus its
// Delta, and the latest BalanceAfter equals the mirrored user balance.
func (e *testEnv) assertLedgerConsistent(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	entries, err := e.store.Ledger().ListByUser(ctx, userID, 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	// Entries arrive newest first.
	running := decimal.Zero
	for i := len(entries) - 1; i >= 0; i-- {
		running = running.Add(entries[i].Delta)
		if !entries[i].BalanceAfter.Equal(running) {
			t.Fatalf("entry %s: balance_after = %s, running sum = %s",
				entries[i].ID, entries[i].BalanceAfter, running)
		}
	}
	user, err := e.store.Users().Get(ctx, userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.Balance.Equal(running) {
		t.Fatalf("user balance %s diverged from ledger sum %s", user.Balance, running)
	}
}

func defaultSnapshot() models.SettingsSnapshot {
	return models.SettingsSnapshot{Version: 1, RequireDepositProof: true}
}
