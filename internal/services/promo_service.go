package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/pkg/errors"
	"github.com/finplay/settlement/pkg/logger"
)

type PromoService struct {
	store repositories.Store
}

func NewPromoService(store repositories.Store) *PromoService {
	return &PromoService{store: store}
}

// Redeem credits a promo code to the user. The code row lock serializes
// concurrent redemptions of the same code, and the unique (user, code)
// redemption record makes a second redemption by the same user fail even
// if the duplicate check races. The credit, redemption record, counter
// bump and audit row commit atomically.
func (s *PromoService) Redeem(ctx context.Context, userID, code string) (*models.LedgerEntry, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errors.New(errors.ErrCodeValidation, "promo code is required")
	}

	var entry *models.LedgerEntry
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		promo, err := tx.Promos().GetCodeByCode(ctx, code)
		if err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeCodeNotFound, "promo code not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load promo code")
		}
		promo, err = tx.Promos().LockCode(ctx, promo.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock promo code")
		}

		now := time.Now().UTC()
		if !promo.IsActive {
			return errors.New(errors.ErrCodeCodeNotFound, "promo code is not active")
		}
		if promo.Expired(now) {
			return errors.New(errors.ErrCodeCodeExpired, "promo code has expired")
		}
		if promo.Exhausted() {
			return errors.New(errors.ErrCodeCodeExhausted, "promo code has no redemptions left")
		}

		redeemed, err := tx.Promos().HasRedemption(ctx, userID, promo.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check prior redemption")
		}
		if redeemed {
			return errors.New(errors.ErrCodeAlreadyRedeemed, "promo code already redeemed")
		}

		err = tx.Promos().CreateRedemption(ctx, &models.PromoRedemption{
			ID:           uuid.NewString(),
			UserID:       userID,
			CodeID:       promo.ID,
			CreditAmount: promo.CreditAmount,
		})
		if err == repositories.ErrDuplicate {
			return errors.New(errors.ErrCodeAlreadyRedeemed, "promo code already redeemed")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record redemption")
		}
		if err := tx.Promos().IncrementRedeemed(ctx, promo.ID); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update redemption count")
		}

		entry, err = appendEntry(ctx, tx, userID, models.EntryKindCredit,
			promo.CreditAmount, models.ReferenceTypePromo, promo.ID, "promo code "+promo.Code)
		if err != nil {
			return err
		}

		return writeAudit(ctx, tx, userID, "", models.AuditPromoRedeemed,
			"promo_code", promo.ID, models.JSONMap{
				"code":   promo.Code,
				"credit": promo.CreditAmount.StringFixed(2),
			})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("promo code redeemed", "user_id", userID, "code", code)
	return entry, nil
}

// ---- code administration ----

type PromoCodeInput struct {
	Code           string
	CreditAmount   decimal.Decimal
	MaxRedemptions int
	ExpiresAt      *time.Time
	IsActive       bool
}

func (s *PromoService) CreateCode(ctx context.Context, actorID, actorName string, input PromoCodeInput) (*models.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if len(code) < 3 || len(code) > 50 {
		return nil, errors.New(errors.ErrCodeValidation, "code must be between 3 and 50 characters")
	}
	if !input.CreditAmount.IsPositive() {
		return nil, errors.New(errors.ErrCodeValidation, "credit amount must be greater than zero")
	}
	if input.MaxRedemptions < 1 {
		return nil, errors.New(errors.ErrCodeValidation, "max_redemptions must be at least 1")
	}

	promo := &models.PromoCode{
		ID:             uuid.NewString(),
		Code:           code,
		CreditAmount:   input.CreditAmount,
		MaxRedemptions: input.MaxRedemptions,
		ExpiresAt:      input.ExpiresAt,
		IsActive:       input.IsActive,
		CreatedBy:      actorID,
	}
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Promos().CreateCode(ctx, promo); err != nil {
			if err == repositories.ErrDuplicate {
				return errors.New(errors.ErrCodeAlreadyExists, "a code with this name already exists")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create promo code")
		}
		return writeAudit(ctx, tx, actorID, actorName, models.AuditPromoCodeChanged,
			"promo_code", promo.ID, models.JSONMap{
				"code":            promo.Code,
				"credit":          promo.CreditAmount.StringFixed(2),
				"max_redemptions": strconv.Itoa(promo.MaxRedemptions),
			})
	})
	if err != nil {
		return nil, err
	}
	return promo, nil
}

// Deactivate disables a code without touching past redemptions.
func (s *PromoService) Deactivate(ctx context.Context, actorID, actorName, code string) (*models.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var promo *models.PromoCode
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		promo, err = tx.Promos().GetCodeByCode(ctx, code)
		if err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeCodeNotFound, "promo code not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load promo code")
		}
		promo.IsActive = false
		if err := tx.Promos().UpdateCode(ctx, promo); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update promo code")
		}
		return writeAudit(ctx, tx, actorID, actorName, models.AuditPromoCodeChanged,
			"promo_code", promo.ID, models.JSONMap{"code": promo.Code, "deactivated": "true"})
	})
	if err != nil {
		return nil, err
	}
	return promo, nil
}

func (s *PromoService) ListCodes(ctx context.Context) ([]models.PromoCode, error) {
	return s.store.Promos().ListCodes(ctx)
}
