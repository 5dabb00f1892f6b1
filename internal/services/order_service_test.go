package services

import (
	"context"
	"sync"
	"testing"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/pkg/errors"
)

func TestCreateOrderInitialStatus(t *testing.T) {
	tests := []struct {
		name       string
		orderType  string
		snapshot   models.SettingsSnapshot
		wantStatus string
	}{
		{
			name:       "deposit requiring proof",
			orderType:  models.OrderTypeDeposit,
			snapshot:   models.SettingsSnapshot{Version: 1, RequireDepositProof: true},
			wantStatus: models.OrderStatusAwaitingProof,
		},
		{
			name:       "deposit without proof requirement",
			orderType:  models.OrderTypeDeposit,
			snapshot:   models.SettingsSnapshot{Version: 1},
			wantStatus: models.OrderStatusPending,
		},
		{
			name:       "game load",
			orderType:  models.OrderTypeGameLoad,
			snapshot:   models.SettingsSnapshot{Version: 1, RequireDepositProof: true},
			wantStatus: models.OrderStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			user := env.mustUser(t, "alice", "100.00")
			result, err := env.orders.Create(context.Background(), CreateOrderInput{
				UserID: user.ID,
				Type:   tt.orderType,
				Amount: mustDecimal(t, "25.00"),
			}, tt.snapshot)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if result.Order.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", result.Order.Status, tt.wantStatus)
			}
			if result.Replayed {
				t.Error("fresh order reported as replayed")
			}
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "0")
	ctx := context.Background()

	_, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: "transfer", Amount: mustDecimal(t, "10.00"),
	}, defaultSnapshot())
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("unknown type: got %v, want VALIDATION_ERROR", err)
	}

	_, err = env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeDeposit, Amount: mustDecimal(t, "0"),
	}, defaultSnapshot())
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("zero amount: got %v, want VALIDATION_ERROR", err)
	}

	// Admin adjustment types never enter through the client path.
	_, err = env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeAdminLoad, Amount: mustDecimal(t, "10.00"),
	}, defaultSnapshot())
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("admin type: got %v, want VALIDATION_ERROR", err)
	}
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "0")
	ctx := context.Background()

	input := CreateOrderInput{
		UserID:         user.ID,
		Type:           models.OrderTypeDeposit,
		Amount:         mustDecimal(t, "50.00"),
		IdempotencyKey: "req-001",
	}
	first, err := env.orders.Create(ctx, input, defaultSnapshot())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := env.orders.Create(ctx, input, defaultSnapshot())
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !second.Replayed {
		t.Error("second create not reported as replayed")
	}
	if second.Order.ID != first.Order.ID {
		t.Errorf("replay returned order %s, want %s", second.Order.ID, first.Order.ID)
	}

	orders, _ := env.orders.ListByUser(ctx, user.ID, 0)
	if len(orders) != 1 {
		t.Errorf("order count = %d, want 1", len(orders))
	}
}

func TestCreateOrderIdempotencyScopedByType(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "100.00")
	ctx := context.Background()

	dep, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeDeposit,
		Amount: mustDecimal(t, "10.00"), IdempotencyKey: "shared",
	}, defaultSnapshot())
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	wd, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeWithdrawal,
		Amount: mustDecimal(t, "10.00"), IdempotencyKey: "shared",
	}, defaultSnapshot())
	if err != nil {
		t.Fatalf("withdrawal: %v", err)
	}
	if wd.Replayed || wd.Order.ID == dep.Order.ID {
		t.Error("idempotency key collided across order types")
	}
}

func TestCreateOrderIdempotencyRace(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "0")
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]*CreateOrderResult, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.orders.Create(ctx, CreateOrderInput{
				UserID:         user.ID,
				Type:           models.OrderTypeDeposit,
				Amount:         mustDecimal(t, "50.00"),
				IdempotencyKey: "race-key",
			}, defaultSnapshot())
		}(i)
	}
	wg.Wait()

	var orderID string
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("attempt %d: %v", i, errs[i])
		}
		if orderID == "" {
			orderID = results[i].Order.ID
		} else if results[i].Order.ID != orderID {
			t.Fatalf("attempt %d returned order %s, want %s", i, results[i].Order.ID, orderID)
		}
	}

	orders, _ := env.orders.ListByUser(ctx, user.ID, 0)
	if len(orders) != 1 {
		t.Errorf("order count = %d, want exactly 1", len(orders))
	}
}

func TestWithdrawalHoldsFundsAtCreation(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "100.00")
	ctx := context.Background()

	_, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeWithdrawal, Amount: mustDecimal(t, "40.00"),
	}, defaultSnapshot())
	if err != nil {
		t.Fatalf("create withdrawal: %v", err)
	}
	assertBalance(t, env.balance(t, user.ID), "60.00")
	env.assertLedgerConsistent(t, user.ID)
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "30.00")
	ctx := context.Background()

	_, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeWithdrawal, Amount: mustDecimal(t, "40.00"),
	}, defaultSnapshot())
	if !errors.HasCode(err, errors.ErrCodeInsufficientFunds) {
		t.Fatalf("got %v, want INSUFFICIENT_FUNDS", err)
	}

	// The failed hold must leave no trace: no order, untouched balance.
	assertBalance(t, env.balance(t, user.ID), "30.00")
	orders, _ := env.orders.ListByUser(ctx, user.ID, 0)
	for _, o := range orders {
		if o.Type == models.OrderTypeWithdrawal {
			t.Errorf("withdrawal order %s survived the failed hold", o.ID)
		}
	}
}

func TestCancelWithdrawalRefundsHold(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "100.00")
	ctx := context.Background()

	result, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeWithdrawal, Amount: mustDecimal(t, "40.00"),
	}, defaultSnapshot())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cancelled, err := env.orders.Cancel(ctx, user.ID, result.Order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	assertBalance(t, env.balance(t, user.ID), "100.00")
	env.assertLedgerConsistent(t, user.ID)
}

func TestCancelByNonOwnerForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.mustUser(t, "alice", "100.00")
	bob := env.mustUser(t, "bobby", "0")
	ctx := context.Background()

	result, _ := env.orders.Create(ctx, CreateOrderInput{
		UserID: alice.ID, Type: models.OrderTypeWithdrawal, Amount: mustDecimal(t, "40.00"),
	}, defaultSnapshot())

	_, err := env.orders.Cancel(ctx, bob.ID, result.Order.ID)
	if !errors.HasCode(err, errors.ErrCodeForbidden) {
		t.Errorf("got %v, want FORBIDDEN", err)
	}
}

func TestCancelDecidedOrderRejected(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "100.00")
	ctx := context.Background()

	result, _ := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeGameLoad, Amount: mustDecimal(t, "20.00"),
	}, defaultSnapshot())
	if _, err := env.approval.ProcessAction(ctx, ActionInput{
		ActorID: "admin-1", ActorName: "admin", OrderID: result.Order.ID,
		Action: models.ActionApprove,
	}, defaultSnapshot()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := env.orders.Cancel(ctx, user.ID, result.Order.ID)
	if !errors.HasCode(err, errors.ErrCodeOrderAlreadyDecided) {
		t.Errorf("got %v, want ORDER_ALREADY_DECIDED", err)
	}
}

func TestSubmitProofMovesOrderToPending(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "0")
	ctx := context.Background()

	result, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeDeposit, Amount: mustDecimal(t, "50.00"),
	}, defaultSnapshot())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Order.Status != models.OrderStatusAwaitingProof {
		t.Fatalf("status = %s, want awaiting_payment_proof", result.Order.Status)
	}

	order, err := env.orders.SubmitProof(ctx, user.ID, result.Order.ID,
		models.JSONMap{"proof_ref": "TXN-12345"})
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if order.Metadata["proof_ref"] != "TXN-12345" {
		t.Errorf("proof metadata not stored: %v", order.Metadata)
	}

	// A second submission has nothing to attach to.
	_, err = env.orders.SubmitProof(ctx, user.ID, result.Order.ID,
		models.JSONMap{"proof_ref": "TXN-99999"})
	if !errors.HasCode(err, errors.ErrCodeOrderAlreadyDecided) {
		t.Errorf("resubmit: got %v, want ORDER_ALREADY_DECIDED", err)
	}
}

func TestAutoApproveDeposit(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "0")
	ctx := context.Background()

	snapshot := models.SettingsSnapshot{Version: 2, AutoApproveDeposits: true}
	result, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeDeposit, Amount: mustDecimal(t, "75.00"),
	}, snapshot)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Order.Status != models.OrderStatusApproved {
		t.Fatalf("status = %s, want approved_executed", result.Order.Status)
	}
	if result.Order.DecidedBy != models.SystemActor {
		t.Errorf("decided_by = %s, want system", result.Order.DecidedBy)
	}
	assertBalance(t, env.balance(t, user.ID), "75.00")
}

func TestAutoApproveSkipsProofGatedDeposit(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "0")
	ctx := context.Background()

	// Proof requirement wins over auto-approval: the order must wait for
	// proof before anything can decide it.
	snapshot := models.SettingsSnapshot{Version: 2, AutoApproveDeposits: true, RequireDepositProof: true}
	result, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeDeposit, Amount: mustDecimal(t, "75.00"),
	}, snapshot)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Order.Status != models.OrderStatusAwaitingProof {
		t.Errorf("status = %s, want awaiting_payment_proof", result.Order.Status)
	}
	assertBalance(t, env.balance(t, user.ID), "0.00")
}

func TestFlagStalePending(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustUser(t, "alice", "100.00")
	ctx := context.Background()

	if _, err := env.orders.Create(ctx, CreateOrderInput{
		UserID: user.ID, Type: models.OrderTypeGameLoad, Amount: mustDecimal(t, "10.00"),
	}, defaultSnapshot()); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A zero threshold flags everything currently pending.
	flagged, err := env.orders.FlagStalePending(ctx, 0)
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	if flagged != 1 {
		t.Errorf("flagged = %d, want 1 with zero threshold", flagged)
	}
}
