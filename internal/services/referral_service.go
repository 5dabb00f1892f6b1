package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/pkg/errors"
	"github.com/finplay/settlement/pkg/logger"
)

// BonusResolution is the outcome of the commission ladder for one
// referrer at one instant.
type BonusResolution struct {
	Percent decimal.Decimal `json:"bonus_percentage"`
	Source  string          `json:"source"`
	// TierName is set when Source is "tier".
	TierName string `json:"tier_name,omitempty"`
}

// TierProgress reports a referrer's standing on the tier ladder.
type TierProgress struct {
	ReferralCount int64                `json:"referral_count"`
	Resolution    BonusResolution      `json:"resolution"`
	CurrentTier   *models.ReferralTier `json:"current_tier,omitempty"`
	NextTier      *models.ReferralTier `json:"next_tier,omitempty"`
	ReferralsToGo int64                `json:"referrals_to_next_tier,omitempty"`
}

type ReferralService struct {
	store repositories.Store
}

func NewReferralService(store repositories.Store) *ReferralService {
	return &ReferralService{store: store}
}

// Resolve walks the bonus ladder for a referrer: an active individual
// override wins, then the active global campaign, then the tier matching
// the referrer's count. No match resolves to zero percent.
func (s *ReferralService) Resolve(ctx context.Context, tx repositories.Store, referrerID string, at time.Time) (BonusResolution, error) {
	override, err := tx.Referrals().GetOverride(ctx, referrerID)
	if err != nil && err != repositories.ErrNotFound {
		return BonusResolution{}, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load client override")
	}
	if err == nil && override.ActiveAt(at) {
		return BonusResolution{Percent: override.BonusPercent, Source: models.BonusSourceOverride}, nil
	}

	campaign, err := tx.Referrals().ActiveCampaign(ctx, at)
	if err != nil && err != repositories.ErrNotFound {
		return BonusResolution{}, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load active campaign")
	}
	if err == nil {
		return BonusResolution{Percent: campaign.BonusPercent, Source: models.BonusSourceCampaign}, nil
	}

	count, err := tx.Users().CountReferredBy(ctx, referrerID)
	if err != nil {
		return BonusResolution{}, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count referrals")
	}
	tier, err := tx.Referrals().TierForCount(ctx, count)
	if err == repositories.ErrNotFound {
		return BonusResolution{Percent: decimal.Zero, Source: models.BonusSourceNone}, nil
	}
	if err != nil {
		return BonusResolution{}, errors.Wrap(err, errors.ErrCodeInternalError, "failed to match tier")
	}
	return BonusResolution{Percent: tier.BonusPercent, Source: models.BonusSourceTier, TierName: tier.Name}, nil
}

// EffectiveBonus previews the percentage a referrer would earn on a
// deposit approved right now.
func (s *ReferralService) EffectiveBonus(ctx context.Context, referrerID string) (BonusResolution, error) {
	if _, err := s.store.Users().Get(ctx, referrerID); err != nil {
		if err == repositories.ErrNotFound {
			return BonusResolution{}, errors.New(errors.ErrCodeNotFound, "user not found")
		}
		return BonusResolution{}, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load user")
	}
	return s.Resolve(ctx, s.store, referrerID, time.Now().UTC())
}

// MyTier reports the caller's referral count, resolved bonus and position
// on the tier ladder.
func (s *ReferralService) MyTier(ctx context.Context, userID string) (*TierProgress, error) {
	count, err := s.store.Users().CountReferredBy(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count referrals")
	}
	resolution, err := s.Resolve(ctx, s.store, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	progress := &TierProgress{ReferralCount: count, Resolution: resolution}
	tiers, err := s.store.Referrals().ListTiers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list tiers")
	}
	for i := range tiers {
		tier := tiers[i]
		if !tier.IsActive {
			continue
		}
		if tier.Matches(count) {
			progress.CurrentTier = &tier
		} else if int64(tier.MinReferrals) > count && progress.NextTier == nil {
			progress.NextTier = &tier
			progress.ReferralsToGo = int64(tier.MinReferrals) - count
		}
	}
	return progress, nil
}

// ---- tier administration ----

type TierInput struct {
	Name         string
	MinReferrals int
	MaxReferrals *int
	BonusPercent decimal.Decimal
	Description  string
	IsActive     bool
}

func (s *ReferralService) SaveTier(ctx context.Context, actorID, actorName, tierID string, input TierInput) (*models.ReferralTier, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "tier name is required")
	}
	if input.MinReferrals < 0 {
		return nil, errors.New(errors.ErrCodeValidation, "min_referrals must not be negative")
	}
	if input.MaxReferrals != nil && *input.MaxReferrals < input.MinReferrals {
		return nil, errors.New(errors.ErrCodeValidation, "max_referrals must not be below min_referrals")
	}
	if err := validatePercent(input.BonusPercent); err != nil {
		return nil, err
	}

	tier := &models.ReferralTier{
		ID:           tierID,
		Name:         input.Name,
		MinReferrals: input.MinReferrals,
		MaxReferrals: input.MaxReferrals,
		BonusPercent: input.BonusPercent,
		Description:  input.Description,
		IsActive:     input.IsActive,
	}
	if tier.ID == "" {
		tier.ID = uuid.NewString()
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Referrals().SaveTier(ctx, tier); err != nil {
			if err == repositories.ErrDuplicate {
				return errors.New(errors.ErrCodeAlreadyExists, "a tier with this name already exists")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save tier")
		}
		return writeAudit(ctx, tx, actorID, actorName, models.AuditTierChanged,
			"referral_tier", tier.ID, models.JSONMap{
				"tier_name": tier.Name,
				"percent":   tier.BonusPercent.StringFixed(2),
			})
	})
	if err != nil {
		return nil, err
	}
	return tier, nil
}

func (s *ReferralService) ListTiers(ctx context.Context) ([]models.ReferralTier, error) {
	return s.store.Referrals().ListTiers(ctx)
}

// ---- campaign administration ----

type CampaignInput struct {
	Name         string
	BonusPercent decimal.Decimal
	StartDate    time.Time
	EndDate      time.Time
	Description  string
	IsActive     bool
}

// CreateCampaign rejects any campaign whose active window intersects an
// existing active campaign, keeping "at most one campaign at any instant"
// true by construction.
func (s *ReferralService) CreateCampaign(ctx context.Context, actorID, actorName string, input CampaignInput) (*models.GlobalCampaign, error) {
	campaign := &models.GlobalCampaign{
		ID:           uuid.NewString(),
		Name:         input.Name,
		BonusPercent: input.BonusPercent,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		Description:  input.Description,
		IsActive:     input.IsActive,
		CreatedBy:    actorID,
	}
	if err := validateCampaign(campaign); err != nil {
		return nil, err
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if campaign.IsActive {
			if err := s.checkOverlap(ctx, tx, campaign); err != nil {
				return err
			}
		}
		if err := tx.Referrals().CreateCampaign(ctx, campaign); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create campaign")
		}
		return writeAudit(ctx, tx, actorID, actorName, models.AuditCampaignCreated,
			"referral_campaign", campaign.ID, models.JSONMap{
				"name":    campaign.Name,
				"percent": campaign.BonusPercent.StringFixed(2),
				"start":   campaign.StartDate.Format(time.RFC3339),
				"end":     campaign.EndDate.Format(time.RFC3339),
			})
	})
	if err != nil {
		return nil, err
	}
	logger.Info("referral campaign created", "campaign_id", campaign.ID, "name", campaign.Name)
	return campaign, nil
}

func (s *ReferralService) UpdateCampaign(ctx context.Context, actorID, actorName, campaignID string, input CampaignInput) (*models.GlobalCampaign, error) {
	campaign := &models.GlobalCampaign{
		ID:           campaignID,
		Name:         input.Name,
		BonusPercent: input.BonusPercent,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		Description:  input.Description,
		IsActive:     input.IsActive,
	}
	if err := validateCampaign(campaign); err != nil {
		return nil, err
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if campaign.IsActive {
			if err := s.checkOverlap(ctx, tx, campaign); err != nil {
				return err
			}
		}
		if err := tx.Referrals().UpdateCampaign(ctx, campaign); err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeNotFound, "campaign not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update campaign")
		}
		return writeAudit(ctx, tx, actorID, actorName, models.AuditConfigChanged,
			"referral_campaign", campaign.ID, models.JSONMap{"name": campaign.Name})
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *ReferralService) DeleteCampaign(ctx context.Context, actorID, actorName, campaignID string) error {
	return s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Referrals().DeleteCampaign(ctx, campaignID); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete campaign")
		}
		return writeAudit(ctx, tx, actorID, actorName, models.AuditConfigChanged,
			"referral_campaign", campaignID, models.JSONMap{"deleted": "true"})
	})
}

func (s *ReferralService) ListCampaigns(ctx context.Context) ([]models.GlobalCampaign, error) {
	return s.store.Referrals().ListCampaigns(ctx)
}

func (s *ReferralService) checkOverlap(ctx context.Context, tx repositories.Store, campaign *models.GlobalCampaign) error {
	count, err := tx.Referrals().CountOverlappingCampaigns(ctx, campaign.StartDate, campaign.EndDate, campaign.ID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check campaign overlap")
	}
	if count > 0 {
		return errors.New(errors.ErrCodeConfigConflict, "an active campaign already covers part of this window")
	}
	return nil
}

func validateCampaign(c *models.GlobalCampaign) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New(errors.ErrCodeValidation, "campaign name is required")
	}
	if !c.EndDate.After(c.StartDate) {
		return errors.New(errors.ErrCodeValidation, "end_date must be after start_date")
	}
	return validatePercent(c.BonusPercent)
}

// ---- client override administration ----

type OverrideInput struct {
	UserID       string
	BonusPercent decimal.Decimal
	ExpiresAt    *time.Time
	Reason       string
	IsActive     bool
}

func (s *ReferralService) SetOverride(ctx context.Context, actorID, actorName string, input OverrideInput) (*models.ClientOverride, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "a reason is required for an individual override")
	}
	if err := validatePercent(input.BonusPercent); err != nil {
		return nil, err
	}

	override := &models.ClientOverride{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		BonusPercent: input.BonusPercent,
		ExpiresAt:    input.ExpiresAt,
		Reason:       input.Reason,
		IsActive:     input.IsActive,
		CreatedBy:    actorID,
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Users().Get(ctx, input.UserID); err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeNotFound, "user not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load user")
		}
		if err := tx.Referrals().UpsertOverride(ctx, override); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save override")
		}
		return writeAudit(ctx, tx, actorID, actorName, models.AuditOverrideChanged,
			"referral_override", input.UserID, models.JSONMap{
				"percent": input.BonusPercent.StringFixed(2),
				"reason":  input.Reason,
			})
	})
	if err != nil {
		return nil, err
	}
	return override, nil
}

func (s *ReferralService) RemoveOverride(ctx context.Context, actorID, actorName, userID string) error {
	return s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Referrals().DeleteOverride(ctx, userID); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete override")
		}
		return writeAudit(ctx, tx, actorID, actorName, models.AuditOverrideChanged,
			"referral_override", userID, models.JSONMap{"deleted": "true"})
	})
}

func (s *ReferralService) ListOverrides(ctx context.Context) ([]models.ClientOverride, error) {
	return s.store.Referrals().ListOverrides(ctx)
}

var maxBonusPercent = decimal.NewFromInt(100)

func validatePercent(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(maxBonusPercent) {
		return errors.New(errors.ErrCodeValidation, "bonus percentage must be between 0 and 100")
	}
	return nil
}
