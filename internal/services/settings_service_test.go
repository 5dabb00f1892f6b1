package services

import (
	"context"
	"testing"
)

func TestSettingsDefaults(t *testing.T) {
	env := newTestEnv(t)
	snapshot, err := env.settings.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Version != 1 {
		t.Errorf("version = %d, want 1", snapshot.Version)
	}
	if !snapshot.RequireDepositProof {
		t.Error("deposit proof not required by default")
	}
	if snapshot.AutoApproveDeposits || snapshot.AutoApproveGameLoads {
		t.Error("auto-approval enabled by default")
	}
}

func TestSettingsUpdateBumpsVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	updated, err := env.settings.Update(ctx, "admin-1", "admin", SettingsInput{
		AutoApproveDeposits: true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d, want 2", updated.Version)
	}
	if updated.UpdatedBy != "admin-1" {
		t.Errorf("updated_by = %s, want admin-1", updated.UpdatedBy)
	}

	snapshot, _ := env.settings.Snapshot(ctx)
	if !snapshot.AutoApproveDeposits {
		t.Error("auto_approve_deposits not persisted")
	}
	if snapshot.RequireDepositProof {
		t.Error("require_deposit_proof not overwritten")
	}
}

// A snapshot taken before a config change keeps governing the request
// that holds it.
func TestSnapshotIsolatedFromLaterChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	before, err := env.settings.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, err := env.settings.Update(ctx, "admin-1", "admin", SettingsInput{
		AutoApproveDeposits: true,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if before.AutoApproveDeposits {
		t.Error("earlier snapshot mutated by later update")
	}
	if before.Version != 1 {
		t.Errorf("earlier snapshot version = %d, want 1", before.Version)
	}
}
