package services

import (
	"context"
	"strconv"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/pkg/errors"
	"github.com/finplay/settlement/pkg/logger"
)

// SettingsService manages the versioned approval configuration. Decision
// paths take a SettingsSnapshot from Snapshot at their start and never
// re-read it mid-flight, so a config change takes effect on the next
// decision, not in the middle of one.
type SettingsService struct {
	store repositories.Store
}

func NewSettingsService(store repositories.Store) *SettingsService {
	return &SettingsService{store: store}
}

func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	settings, err := s.store.Settings().Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load settings")
	}
	return settings, nil
}

// Snapshot returns the value copy handed into order creation and
// decisions.
func (s *SettingsService) Snapshot(ctx context.Context) (models.SettingsSnapshot, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return models.SettingsSnapshot{}, err
	}
	return settings.Snapshot(), nil
}

type SettingsInput struct {
	AutoApproveDeposits  bool
	AutoApproveGameLoads bool
	RequireDepositProof  bool
}

// Update replaces the configuration and bumps its version. The old and
// new versions are audited so any decision's settings_version can be
// traced to the exact configuration it ran under.
func (s *SettingsService) Update(ctx context.Context, actorID, actorName string, input SettingsInput) (*models.Settings, error) {
	var updated *models.Settings
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		current, err := tx.Settings().Get(ctx)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load settings")
		}
		previous := current.Version

		current.Version++
		current.AutoApproveDeposits = input.AutoApproveDeposits
		current.AutoApproveGameLoads = input.AutoApproveGameLoads
		current.RequireDepositProof = input.RequireDepositProof
		current.UpdatedBy = actorID
		if err := tx.Settings().Update(ctx, current); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update settings")
		}
		updated = current

		return writeAudit(ctx, tx, actorID, actorName, models.AuditSettingsChanged,
			"settings", strconv.Itoa(current.Version), models.JSONMap{
				"previous_version":        strconv.Itoa(previous),
				"version":                 strconv.Itoa(current.Version),
				"auto_approve_deposits":   strconv.FormatBool(input.AutoApproveDeposits),
				"auto_approve_game_loads": strconv.FormatBool(input.AutoApproveGameLoads),
				"require_deposit_proof":   strconv.FormatBool(input.RequireDepositProof),
			})
	})
	if err != nil {
		return nil, err
	}
	logger.Info("settings updated", "version", updated.Version, "updated_by", actorID)
	return updated, nil
}
