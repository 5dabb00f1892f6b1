package services

import (
	"context"
	"testing"
	"time"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/pkg/errors"
)

// seedLadder installs a tier, an active campaign and an individual
// override so resolution priority can be observed by knocking layers out
// one at a time: override 30%, campaign 20%, tier 10%.
func seedLadder(t *testing.T, env *testEnv, referrerID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := env.referrals.SaveTier(ctx, "admin-1", "admin", "", TierInput{
		Name: "Starter", MinReferrals: 0, BonusPercent: mustDecimal(t, "10"), IsActive: true,
	}); err != nil {
		t.Fatalf("tier: %v", err)
	}
	now := time.Now().UTC()
	if _, err := env.referrals.CreateCampaign(ctx, "admin-1", "admin", CampaignInput{
		Name:         "summer boost",
		BonusPercent: mustDecimal(t, "20"),
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(time.Hour),
		IsActive:     true,
	}); err != nil {
		t.Fatalf("campaign: %v", err)
	}
	if _, err := env.referrals.SetOverride(ctx, "admin-1", "admin", OverrideInput{
		UserID:       referrerID,
		BonusPercent: mustDecimal(t, "30"),
		Reason:       "vip partner",
		IsActive:     true,
	}); err != nil {
		t.Fatalf("override: %v", err)
	}
}

func TestResolvePriorityLadder(t *testing.T) {
	env := newTestEnv(t)
	referrer := env.mustUser(t, "carol", "0")
	env.mustReferredUser(t, "alice", "0", referrer.ReferralCode)
	seedLadder(t, env, referrer.ID)
	ctx := context.Background()
	now := time.Now().UTC()

	res, err := env.referrals.Resolve(ctx, env.store, referrer.ID, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != models.BonusSourceOverride || !res.Percent.Equal(mustDecimal(t, "30")) {
		t.Fatalf("with override: got %s %s, want individual_override 30", res.Source, res.Percent)
	}

	// Drop the override: the campaign takes over.
	if err := env.referrals.RemoveOverride(ctx, "admin-1", "admin", referrer.ID); err != nil {
		t.Fatalf("remove override: %v", err)
	}
	res, err = env.referrals.Resolve(ctx, env.store, referrer.ID, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != models.BonusSourceCampaign || !res.Percent.Equal(mustDecimal(t, "20")) {
		t.Fatalf("with campaign: got %s %s, want global_campaign 20", res.Source, res.Percent)
	}

	// Past the campaign window, the tier ladder applies.
	res, err = env.referrals.Resolve(ctx, env.store, referrer.ID, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != models.BonusSourceTier || !res.Percent.Equal(mustDecimal(t, "10")) {
		t.Fatalf("with tier: got %s %s, want tier 10", res.Source, res.Percent)
	}
	if res.TierName != "Starter" {
		t.Errorf("tier name = %s, want Starter", res.TierName)
	}
}

func TestResolveExpiredOverrideFallsThrough(t *testing.T) {
	env := newTestEnv(t)
	referrer := env.mustUser(t, "carol", "0")
	ctx := context.Background()
	now := time.Now().UTC()

	expiry := now.Add(-time.Minute)
	if _, err := env.referrals.SetOverride(ctx, "admin-1", "admin", OverrideInput{
		UserID:       referrer.ID,
		BonusPercent: mustDecimal(t, "40"),
		ExpiresAt:    &expiry,
		Reason:       "expired promo deal",
		IsActive:     true,
	}); err != nil {
		t.Fatalf("override: %v", err)
	}

	res, err := env.referrals.Resolve(ctx, env.store, referrer.ID, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != models.BonusSourceNone || !res.Percent.IsZero() {
		t.Errorf("got %s %s, want none 0", res.Source, res.Percent)
	}
}

func TestTierBandSelection(t *testing.T) {
	env := newTestEnv(t)
	referrer := env.mustUser(t, "carol", "0")
	ctx := context.Background()

	five := 5
	if _, err := env.referrals.SaveTier(ctx, "admin-1", "admin", "", TierInput{
		Name: "Starter", MinReferrals: 1, MaxReferrals: &five,
		BonusPercent: mustDecimal(t, "10"), IsActive: true,
	}); err != nil {
		t.Fatalf("tier: %v", err)
	}
	if _, err := env.referrals.SaveTier(ctx, "admin-1", "admin", "", TierInput{
		Name: "Silver", MinReferrals: 6,
		BonusPercent: mustDecimal(t, "15"), IsActive: true,
	}); err != nil {
		t.Fatalf("tier: %v", err)
	}

	// Zero referrals sits below every band.
	res, _ := env.referrals.Resolve(ctx, env.store, referrer.ID, time.Now().UTC())
	if res.Source != models.BonusSourceNone {
		t.Fatalf("no referrals: got %s, want none", res.Source)
	}

	for i := 0; i < 6; i++ {
		env.mustReferredUser(t, "ref-user-"+string(rune('a'+i)), "0", referrer.ReferralCode)
	}
	res, _ = env.referrals.Resolve(ctx, env.store, referrer.ID, time.Now().UTC())
	if res.TierName != "Silver" {
		t.Errorf("six referrals: tier = %s, want Silver", res.TierName)
	}
}

func TestCampaignOverlapRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Hour)

	if _, err := env.referrals.CreateCampaign(ctx, "admin-1", "admin", CampaignInput{
		Name:         "week one",
		BonusPercent: mustDecimal(t, "20"),
		StartDate:    base,
		EndDate:      base.Add(7 * 24 * time.Hour),
		IsActive:     true,
	}); err != nil {
		t.Fatalf("first campaign: %v", err)
	}

	_, err := env.referrals.CreateCampaign(ctx, "admin-1", "admin", CampaignInput{
		Name:         "overlapping",
		BonusPercent: mustDecimal(t, "25"),
		StartDate:    base.Add(3 * 24 * time.Hour),
		EndDate:      base.Add(10 * 24 * time.Hour),
		IsActive:     true,
	})
	if !errors.HasCode(err, errors.ErrCodeConfigConflict) {
		t.Fatalf("got %v, want CONFIG_CONFLICT", err)
	}

	// Touching windows do not overlap: [a,b) then [b,c).
	if _, err := env.referrals.CreateCampaign(ctx, "admin-1", "admin", CampaignInput{
		Name:         "week two",
		BonusPercent: mustDecimal(t, "25"),
		StartDate:    base.Add(7 * 24 * time.Hour),
		EndDate:      base.Add(14 * 24 * time.Hour),
		IsActive:     true,
	}); err != nil {
		t.Fatalf("adjacent campaign: %v", err)
	}

	// An inactive campaign may overlap freely.
	if _, err := env.referrals.CreateCampaign(ctx, "admin-1", "admin", CampaignInput{
		Name:         "draft",
		BonusPercent: mustDecimal(t, "30"),
		StartDate:    base,
		EndDate:      base.Add(30 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("inactive campaign: %v", err)
	}
}

func TestCampaignValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := env.referrals.CreateCampaign(ctx, "admin-1", "admin", CampaignInput{
		Name:         "backwards",
		BonusPercent: mustDecimal(t, "20"),
		StartDate:    now,
		EndDate:      now.Add(-time.Hour),
		IsActive:     true,
	})
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("inverted window: got %v, want VALIDATION_ERROR", err)
	}

	_, err = env.referrals.CreateCampaign(ctx, "admin-1", "admin", CampaignInput{
		Name:         "too generous",
		BonusPercent: mustDecimal(t, "150"),
		StartDate:    now,
		EndDate:      now.Add(time.Hour),
		IsActive:     true,
	})
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("percent over 100: got %v, want VALIDATION_ERROR", err)
	}
}

func TestMyTierProgress(t *testing.T) {
	env := newTestEnv(t)
	referrer := env.mustUser(t, "carol", "0")
	ctx := context.Background()

	two := 2
	if _, err := env.referrals.SaveTier(ctx, "admin-1", "admin", "", TierInput{
		Name: "Starter", MinReferrals: 0, MaxReferrals: &two,
		BonusPercent: mustDecimal(t, "10"), IsActive: true,
	}); err != nil {
		t.Fatalf("tier: %v", err)
	}
	if _, err := env.referrals.SaveTier(ctx, "admin-1", "admin", "", TierInput{
		Name: "Silver", MinReferrals: 3,
		BonusPercent: mustDecimal(t, "15"), IsActive: true,
	}); err != nil {
		t.Fatalf("tier: %v", err)
	}
	env.mustReferredUser(t, "alice", "0", referrer.ReferralCode)

	progress, err := env.referrals.MyTier(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("my tier: %v", err)
	}
	if progress.ReferralCount != 1 {
		t.Errorf("count = %d, want 1", progress.ReferralCount)
	}
	if progress.CurrentTier == nil || progress.CurrentTier.Name != "Starter" {
		t.Errorf("current tier = %+v, want Starter", progress.CurrentTier)
	}
	if progress.NextTier == nil || progress.NextTier.Name != "Silver" {
		t.Fatalf("next tier = %+v, want Silver", progress.NextTier)
	}
	if progress.ReferralsToGo != 2 {
		t.Errorf("referrals to go = %d, want 2", progress.ReferralsToGo)
	}
}

func TestSaveTierValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	three := 3
	_, err := env.referrals.SaveTier(ctx, "admin-1", "admin", "", TierInput{
		Name: "Broken", MinReferrals: 5, MaxReferrals: &three,
		BonusPercent: mustDecimal(t, "10"), IsActive: true,
	})
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("inverted band: got %v, want VALIDATION_ERROR", err)
	}
}
