package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/pkg/errors"
)

// appendEntry is the single write path into the balance ledger. It must be
// called inside a store transaction. The user row lock serializes all
// entries for one user, so BalanceAfter always equals the previous
// BalanceAfter plus Delta.
func appendEntry(ctx context.Context, tx repositories.Store, userID, kind string, delta decimal.Decimal, refType, refID, description string) (*models.LedgerEntry, error) {
	user, err := tx.Users().Lock(ctx, userID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return nil, errors.New(errors.ErrCodeNotFound, "user not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock user balance")
	}

	newBalance := user.Balance.Add(delta)
	// Refunds restore held funds and are always permitted; everything else
	// must not take the running sum below zero.
	if newBalance.IsNegative() && kind != models.EntryKindRefund {
		return nil, errors.New(errors.ErrCodeInsufficientFunds, "insufficient balance")
	}

	entry := &models.LedgerEntry{
		ID:            uuid.NewString(),
		UserID:        userID,
		Kind:          kind,
		Delta:         delta,
		BalanceAfter:  newBalance,
		ReferenceID:   refID,
		ReferenceType: refType,
		Description:   description,
	}
	if err := tx.Ledger().Append(ctx, entry); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to append ledger entry")
	}
	if err := tx.Users().UpdateBalance(ctx, userID, newBalance); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to update balance")
	}
	return entry, nil
}

// LedgerService exposes read access to balances and entry history.
type LedgerService struct {
	store repositories.Store
}

func NewLedgerService(store repositories.Store) *LedgerService {
	return &LedgerService{store: store}
}

func (s *LedgerService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return decimal.Zero, errors.New(errors.ErrCodeNotFound, "user not found")
		}
		return decimal.Zero, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load user")
	}
	return user.Balance, nil
}

func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Ledger().ListByUser(ctx, userID, limit)
}

func (s *LedgerService) EntriesForOrder(ctx context.Context, orderID string) ([]models.LedgerEntry, error) {
	return s.store.Ledger().ListByReference(ctx, models.ReferenceTypeOrder, orderID)
}
