package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/models"
)

func TestMemoryStoreTransactionRollback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user := &models.User{ID: "u1", Username: "alice", Balance: decimal.Zero, ReferralCode: "ALICE1"}
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx Store) error {
		if err := tx.Users().UpdateBalance(ctx, "u1", decimal.NewFromInt(50)); err != nil {
			return err
		}
		if err := tx.Ledger().Append(ctx, &models.LedgerEntry{
			ID: "e1", UserID: "u1", Kind: models.EntryKindCredit,
			Delta: decimal.NewFromInt(50), BalanceAfter: decimal.NewFromInt(50),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := store.Users().Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !got.Balance.IsZero() {
		t.Errorf("balance mutated despite rollback: %s", got.Balance)
	}
	entries, err := store.Ledger().ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ledger entry survived rollback: %d entries", len(entries))
	}
}

func TestMemoryStoreTransactionCommit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Users().Create(ctx, &models.User{ID: "u1", Username: "alice", ReferralCode: "ALICE1"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	err := store.Transaction(ctx, func(tx Store) error {
		return tx.Users().UpdateBalance(ctx, "u1", decimal.NewFromInt(75))
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	got, _ := store.Users().Get(ctx, "u1")
	if !got.Balance.Equal(decimal.NewFromInt(75)) {
		t.Errorf("balance = %s, want 75", got.Balance)
	}
}

func TestMemoryStoreDecideGuard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	order := &models.Order{
		ID: "o1", UserID: "u1", Type: models.OrderTypeDeposit,
		Amount: decimal.NewFromInt(10), Status: models.OrderStatusPending,
	}
	if err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	from := []string{models.OrderStatusPending, models.OrderStatusAwaitingProof}
	decision := OrderDecision{
		Status: models.OrderStatusApproved, DecidedBy: "admin", DecidedAt: time.Now().UTC(),
	}
	if err := store.Orders().Decide(ctx, "o1", from, decision); err != nil {
		t.Fatalf("first decide: %v", err)
	}

	err := store.Orders().Decide(ctx, "o1", from, OrderDecision{
		Status: models.OrderStatusRejected, DecidedBy: "admin", DecidedAt: time.Now().UTC(),
	})
	if !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("second decide: got %v, want ErrStaleRecord", err)
	}

	got, _ := store.Orders().Get(ctx, "o1")
	if got.Status != models.OrderStatusApproved {
		t.Errorf("status = %s, want %s", got.Status, models.OrderStatusApproved)
	}
}

func TestMemoryStoreIdempotencyKeyUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := &models.IdempotencyKey{Scope: "deposit_request", Key: "k1", OrderID: "o1"}
	if err := store.Keys().Create(ctx, rec); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.Keys().Create(ctx, &models.IdempotencyKey{Scope: "deposit_request", Key: "k1", OrderID: "o2"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate create: got %v, want ErrDuplicate", err)
	}
	// Same key under a different scope is a different record.
	if err := store.Keys().Create(ctx, &models.IdempotencyKey{Scope: "withdrawal_request", Key: "k1", OrderID: "o3"}); err != nil {
		t.Fatalf("cross-scope create: %v", err)
	}
}

func TestMemoryStoreRedemptionUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	r := &models.PromoRedemption{ID: "r1", UserID: "u1", CodeID: "c1", CreditAmount: decimal.NewFromInt(5)}
	if err := store.Promos().CreateRedemption(ctx, r); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	err := store.Promos().CreateRedemption(ctx, &models.PromoRedemption{ID: "r2", UserID: "u1", CodeID: "c1"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate redemption: got %v, want ErrDuplicate", err)
	}
}

func TestMemoryStoreKeySweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	old := &models.IdempotencyKey{Scope: "deposit_request", Key: "old", OrderID: "o1",
		CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &models.IdempotencyKey{Scope: "deposit_request", Key: "fresh", OrderID: "o2"}
	if err := store.Keys().Create(ctx, old); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if err := store.Keys().Create(ctx, fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	removed, err := store.Keys().DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.Keys().Get(ctx, "deposit_request", "fresh"); err != nil {
		t.Errorf("fresh key swept: %v", err)
	}
	if _, err := store.Keys().Get(ctx, "deposit_request", "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old key still present: %v", err)
	}
}
