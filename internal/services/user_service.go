package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/pkg/errors"
	"github.com/finplay/settlement/pkg/logger"
	"github.com/finplay/settlement/pkg/utils"
)

const referralCodeLength = 8

type UserService struct {
	store repositories.Store
}

func NewUserService(store repositories.Store) *UserService {
	return &UserService{store: store}
}

// Register creates a user account. When referredByCode names an existing
// user's referral code, the new account is permanently attributed to that
// referrer; the attribution drives commission resolution on every future
// approved deposit.
func (s *UserService) Register(ctx context.Context, username, displayName, referredByCode string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 100 {
		return nil, errors.New(errors.ErrCodeValidation, "username must be between 3 and 100 characters")
	}

	var referredBy *string
	if referredByCode != "" {
		referrer, err := s.store.Users().GetByReferralCode(ctx, strings.ToUpper(strings.TrimSpace(referredByCode)))
		if err != nil {
			if err == repositories.ErrNotFound {
				return nil, errors.New(errors.ErrCodeValidation, "unknown referral code")
			}
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to resolve referral code")
		}
		referredBy = &referrer.ID
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  displayName,
		ReferralCode: utils.GenerateReferralCode(referralCodeLength),
		ReferredBy:   referredBy,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if err == repositories.ErrDuplicate {
			return nil, errors.New(errors.ErrCodeAlreadyExists, "username already taken")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create user")
	}

	logger.Info("user registered", "user_id", user.ID, "referred", referredBy != nil)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users().Get(ctx, id)
	if err != nil {
		if err == repositories.ErrNotFound {
			return nil, errors.New(errors.ErrCodeNotFound, "user not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load user")
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if err == repositories.ErrNotFound {
			return nil, errors.New(errors.ErrCodeNotFound, "user not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load user")
	}
	return user, nil
}
