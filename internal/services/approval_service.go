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

// ActionInput identifies a single approve/reject decision on an order.
type ActionInput struct {
	ActorID   string
	ActorName string
	OrderID   string
	Action    string
	Reason    string
}

// ApprovalService decides orders. A decision is one transaction: status
// transition, ledger effects, referral commission and audit rows all
// commit together or not at all. Two concurrent decisions on the same
// order serialize on the status compare-and-swap; the loser gets
// ORDER_ALREADY_DECIDED and no effect is applied twice.
type ApprovalService struct {
	store     repositories.Store
	referrals *ReferralService
	notifier  Notifier
}

func NewApprovalService(store repositories.Store, referrals *ReferralService, notifier Notifier) *ApprovalService {
	return &ApprovalService{store: store, referrals: referrals, notifier: notifier}
}

func (s *ApprovalService) ProcessAction(ctx context.Context, input ActionInput, settings models.SettingsSnapshot) (*models.Order, error) {
	if input.Action != models.ActionApprove && input.Action != models.ActionReject {
		return nil, errors.New(errors.ErrCodeValidation, "action must be approve or reject")
	}
	if input.Action == models.ActionReject && strings.TrimSpace(input.Reason) == "" {
		return nil, errors.New(errors.ErrCodeValidation, "a reason is required to reject an order")
	}

	var order *models.Order
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().Get(ctx, input.OrderID)
		if err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeOrderNotFound, "order not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load order")
		}

		target := models.OrderStatusApproved
		if input.Action == models.ActionReject {
			target = models.OrderStatusRejected
		}

		// The status transition goes first. If any later effect fails the
		// rollback reverts it, and the compare-and-swap guard makes the
		// losing side of a concurrent decision fail here.
		now := time.Now().UTC()
		err = tx.Orders().Decide(ctx, input.OrderID,
			[]string{models.OrderStatusPending, models.OrderStatusAwaitingProof},
			repositories.OrderDecision{
				Status:    target,
				Reason:    input.Reason,
				DecidedBy: input.ActorID,
				DecidedAt: now,
			})
		if err == repositories.ErrStaleRecord {
			return errors.New(errors.ErrCodeOrderAlreadyDecided, "order already decided")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to decide order")
		}
		order.Status = target
		order.Reason = input.Reason
		order.DecidedBy = input.ActorID
		order.DecidedAt = &now

		if err := s.applyEffects(ctx, tx, order, input.Action); err != nil {
			return err
		}

		if input.Action == models.ActionApprove && order.Type == models.OrderTypeDeposit {
			if err := s.payCommission(ctx, tx, order); err != nil {
				return err
			}
		}

		return writeAudit(ctx, tx, input.ActorID, input.ActorName, models.AuditOrderDecided,
			"order", order.ID, models.JSONMap{
				"action":           input.Action,
				"order_type":       order.Type,
				"amount":           order.Amount.StringFixed(2),
				"reason":           input.Reason,
				"settings_version": strconv.Itoa(settings.Version),
			})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order decided",
		"order_id", order.ID, "action", input.Action,
		"order_type", order.Type, "decided_by", input.ActorID)
	s.notifier.OrderDecided(ctx, order)
	return order, nil
}

// applyEffects maps (order type, action) to ledger writes.
//
//	deposit     approve: credit amount      reject: nothing
//	withdrawal  approve: release held funds reject: refund the hold
//	game_load   approve: debit amount       reject: nothing
//	redemption  approve: credit amount      reject: nothing
func (s *ApprovalService) applyEffects(ctx context.Context, tx repositories.Store, order *models.Order, action string) error {
	approve := action == models.ActionApprove
	switch order.Type {
	case models.OrderTypeDeposit:
		if approve {
			_, err := appendEntry(ctx, tx, order.UserID, models.EntryKindCredit,
				order.Amount, models.ReferenceTypeOrder, order.ID, "deposit approved")
			return err
		}
	case models.OrderTypeWithdrawal:
		if approve {
			// Funds left the balance at hold time; the release entry marks
			// the payout as final without moving the running sum.
			_, err := appendEntry(ctx, tx, order.UserID, models.EntryKindRelease,
				decimal.Zero, models.ReferenceTypeOrder, order.ID, "withdrawal released")
			return err
		}
		_, err := appendEntry(ctx, tx, order.UserID, models.EntryKindRefund,
			order.Amount, models.ReferenceTypeOrder, order.ID, "withdrawal hold refund on reject")
		return err
	case models.OrderTypeGameLoad:
		if approve {
			_, err := appendEntry(ctx, tx, order.UserID, models.EntryKindDebit,
				order.Amount.Neg(), models.ReferenceTypeOrder, order.ID, "game credits purchased")
			return err
		}
	case models.OrderTypeRedemption:
		if approve {
			_, err := appendEntry(ctx, tx, order.UserID, models.EntryKindCredit,
				order.Amount, models.ReferenceTypeOrder, order.ID, "game credits redeemed")
			return err
		}
	}
	return nil
}

// payCommission credits the depositor's referrer according to the bonus
// resolution ladder. A resolution of zero percent is audited, not paid.
func (s *ApprovalService) payCommission(ctx context.Context, tx repositories.Store, order *models.Order) error {
	user, err := tx.Users().Get(ctx, order.UserID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load depositor")
	}
	if user.ReferredBy == nil {
		return nil
	}

	resolution, err := s.referrals.Resolve(ctx, tx, *user.ReferredBy, time.Now().UTC())
	if err != nil {
		return err
	}
	if resolution.Source == models.BonusSourceNone || resolution.Percent.IsZero() {
		return writeAudit(ctx, tx, models.SystemActor, models.SystemActor,
			models.AuditCommissionNoTier, "order", order.ID, models.JSONMap{
				"referrer_id": *user.ReferredBy,
				"source":      resolution.Source,
			})
	}

	commission := order.Amount.Mul(resolution.Percent).Div(decimal.NewFromInt(100)).Round(2)
	_, err = appendEntry(ctx, tx, *user.ReferredBy, models.EntryKindCredit,
		commission, models.ReferenceTypeOrder, order.ID, "referral commission")
	if err != nil {
		return err
	}

	return writeAudit(ctx, tx, models.SystemActor, models.SystemActor,
		models.AuditCommissionPaid, "order", order.ID, models.JSONMap{
			"referrer_id": *user.ReferredBy,
			"source":      resolution.Source,
			"percent":     resolution.Percent.StringFixed(2),
			"commission":  commission.StringFixed(2),
		})
}

const minAdjustmentReasonLength = 5

// AdminAdjust applies a manual balance load or withdrawal. The order is
// born decided: there is no pending state for admin adjustments, but the
// order and ledger rows keep them on the same audit surface as client
// orders.
func (s *ApprovalService) AdminAdjust(ctx context.Context, actorID, actorName, userID string, amount decimal.Decimal, load bool, reason string) (*models.Order, error) {
	if !amount.IsPositive() {
		return nil, errors.New(errors.ErrCodeValidation, "amount must be greater than zero")
	}
	if len(strings.TrimSpace(reason)) < minAdjustmentReasonLength {
		return nil, errors.New(errors.ErrCodeValidation, "a reason of at least 5 characters is required")
	}

	orderType := models.OrderTypeAdminWithdraw
	kind := models.EntryKindDebit
	delta := amount.Neg()
	auditAction := models.AuditAdminWithdraw
	if load {
		orderType = models.OrderTypeAdminLoad
		kind = models.EntryKindCredit
		delta = amount
		auditAction = models.AuditAdminLoad
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      orderType,
		Amount:    amount,
		Status:    models.OrderStatusApproved,
		Reason:    reason,
		DecidedBy: actorID,
		DecidedAt: &now,
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Users().Get(ctx, userID); err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeNotFound, "user not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load user")
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create adjustment order")
		}
		if _, err := appendEntry(ctx, tx, userID, kind, delta,
			models.ReferenceTypeOrder, order.ID, reason); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actorID, actorName, auditAction, "order", order.ID,
			models.JSONMap{
				"user_id": userID,
				"amount":  amount.StringFixed(2),
				"reason":  reason,
			})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("admin balance adjustment",
		"order_id", order.ID, "user_id", userID,
		"order_type", orderType, "amount", amount.StringFixed(2), "actor", actorID)
	return order, nil
}
