package services

import (
	"context"
	"testing"

	"github.com/finplay/settlement/pkg/errors"
)

func TestRegisterAssignsReferralCode(t *testing.T) {
	env := newTestEnv(t)
	user, err := env.users.Register(context.Background(), "alice", "Alice", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(user.ReferralCode) != referralCodeLength {
		t.Errorf("referral code %q has length %d, want %d",
			user.ReferralCode, len(user.ReferralCode), referralCodeLength)
	}
	if user.ReferredBy != nil {
		t.Error("unreferred user has a referrer")
	}
	if !user.Balance.IsZero() {
		t.Errorf("initial balance = %s, want 0", user.Balance)
	}
}

func TestRegisterWithReferral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer, err := env.users.Register(ctx, "carol", "Carol", "")
	if err != nil {
		t.Fatalf("register referrer: %v", err)
	}
	referred, err := env.users.Register(ctx, "alice", "Alice", referrer.ReferralCode)
	if err != nil {
		t.Fatalf("register referred: %v", err)
	}
	if referred.ReferredBy == nil || *referred.ReferredBy != referrer.ID {
		t.Errorf("referred_by = %v, want %s", referred.ReferredBy, referrer.ID)
	}

	count, err := env.store.Users().CountReferredBy(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("referral count = %d, want 1", count)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.users.Register(ctx, "ab", "Short", ""); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("short username: got %v, want VALIDATION_ERROR", err)
	}
	if _, err := env.users.Register(ctx, "alice", "Alice", "ZZZZZZZZ"); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("unknown referral code: got %v, want VALIDATION_ERROR", err)
	}

	if _, err := env.users.Register(ctx, "alice", "Alice", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := env.users.Register(ctx, "alice", "Other Alice", ""); !errors.HasCode(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("duplicate username: got %v, want ALREADY_EXISTS", err)
	}
}
