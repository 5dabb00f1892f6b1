package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/pkg/errors"
	"github.com/finplay/settlement/pkg/logger"
)

// CreateOrderInput carries a client order request. IdempotencyKey is
// optional; when set, retries with the same key return the original order
// instead of creating a new one.
type CreateOrderInput struct {
	UserID         string
	Type           string
	Amount         decimal.Decimal
	Metadata       models.JSONMap
	IdempotencyKey string
}

// CreateOrderResult reports the order and whether it was replayed from an
// earlier request with the same idempotency key.
type CreateOrderResult struct {
	Order    *models.Order
	Replayed bool
}

type OrderService struct {
	store    repositories.Store
	approval *ApprovalService
	notifier Notifier
}

func NewOrderService(store repositories.Store, approval *ApprovalService, notifier Notifier) *OrderService {
	return &OrderService{store: store, approval: approval, notifier: notifier}
}

// idemScope namespaces idempotency keys per order type, so the same client
// key may be reused across different order types without collision.
func idemScope(orderType string) string {
	return orderType + "_request"
}

// Create validates and persists a client order. Order creation, the
// withdrawal hold, the idempotency key and the audit row commit in one
// transaction. A duplicate idempotency key, whether found up front or lost
// in a race on insert, replays the original order.
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput, settings models.SettingsSnapshot) (*CreateOrderResult, error) {
	if !models.IsClientOrderType(input.Type) {
		return nil, errors.New(errors.ErrCodeValidation, fmt.Sprintf("invalid order type: %s", input.Type))
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New(errors.ErrCodeValidation, "amount must be greater than zero")
	}

	if input.IdempotencyKey != "" {
		if result, err := s.replay(ctx, input); result != nil || err != nil {
			return result, err
		}
	}

	order := &models.Order{
		ID:       uuid.NewString(),
		UserID:   input.UserID,
		Type:     input.Type,
		Amount:   input.Amount,
		Status:   initialStatus(input.Type, settings),
		Metadata: input.Metadata,
	}

	var user *models.User
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		user, err = tx.Users().Get(ctx, input.UserID)
		if err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeNotFound, "user not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load user")
		}

		if input.IdempotencyKey != "" {
			err := tx.Keys().Create(ctx, &models.IdempotencyKey{
				Scope:   idemScope(input.Type),
				Key:     input.IdempotencyKey,
				OrderID: order.ID,
			})
			if err == repositories.ErrDuplicate {
				// Another request with this key won the race.
				return errDuplicateKey
			}
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record idempotency key")
			}
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create order")
		}

		// Withdrawals reserve funds at creation so a pending withdrawal can
		// never be double-spent while it waits for review.
		if input.Type == models.OrderTypeWithdrawal {
			_, err := appendEntry(ctx, tx, input.UserID, models.EntryKindHold,
				input.Amount.Neg(), models.ReferenceTypeOrder, order.ID, "withdrawal hold")
			if err != nil {
				return err
			}
		}

		return writeAudit(ctx, tx, input.UserID, user.Username, models.AuditOrderCreated,
			"order", order.ID, models.JSONMap{
				"order_type": order.Type,
				"amount":     order.Amount.StringFixed(2),
				"status":     order.Status,
			})
	})
	if err == errDuplicateKey {
		result, rerr := s.replay(ctx, input)
		if result != nil {
			return result, nil
		}
		if rerr != nil {
			return nil, rerr
		}
		return nil, errors.New(errors.ErrCodeInternalError, "idempotency key exists without order")
	}
	if err != nil {
		return nil, err
	}

	logger.Info("order created",
		"order_id", order.ID, "user_id", order.UserID,
		"order_type", order.Type, "amount", order.Amount.StringFixed(2), "status", order.Status)
	s.notifier.OrderCreated(ctx, order, user)

	// Auto-approval runs after the creation commits, as the system actor.
	// The order stays pending if the approval fails; an admin decides it.
	if autoApproved(order, settings) {
		decided, err := s.approval.ProcessAction(ctx, ActionInput{
			ActorID:   models.SystemActor,
			ActorName: models.SystemActor,
			OrderID:   order.ID,
			Action:    models.ActionApprove,
			Reason:    "auto-approved",
		}, settings)
		if err != nil {
			logger.Warn("auto-approval failed, order left pending",
				"order_id", order.ID, "error", err)
		} else {
			order = decided
		}
	}

	return &CreateOrderResult{Order: order}, nil
}

var errDuplicateKey = errors.New(errors.ErrCodeAlreadyExists, "duplicate idempotency key")

// replay loads the order previously created under the request's
// idempotency key, or nil when no such key exists.
func (s *OrderService) replay(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	rec, err := s.store.Keys().Get(ctx, idemScope(input.Type), input.IdempotencyKey)
	if err == repositories.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to check idempotency key")
	}
	order, err := s.store.Orders().Get(ctx, rec.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load replayed order")
	}
	logger.Info("order replayed from idempotency key",
		"order_id", order.ID, "scope", rec.Scope)
	return &CreateOrderResult{Order: order, Replayed: true}, nil
}

func initialStatus(orderType string, settings models.SettingsSnapshot) string {
	if orderType == models.OrderTypeDeposit && settings.RequireDepositProof {
		return models.OrderStatusAwaitingProof
	}
	return models.OrderStatusPending
}

func autoApproved(order *models.Order, settings models.SettingsSnapshot) bool {
	if order.Status != models.OrderStatusPending {
		return false
	}
	switch order.Type {
	case models.OrderTypeDeposit:
		return settings.AutoApproveDeposits
	case models.OrderTypeGameLoad:
		return settings.AutoApproveGameLoads
	}
	return false
}

// SubmitProof attaches payment proof to a deposit awaiting it and moves
// the order into the review queue.
func (s *OrderService) SubmitProof(ctx context.Context, userID, orderID string, proof models.JSONMap) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().Get(ctx, orderID)
		if err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeOrderNotFound, "order not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load order")
		}
		if order.UserID != userID {
			return errors.New(errors.ErrCodeForbidden, "order belongs to another user")
		}
		if order.Status != models.OrderStatusAwaitingProof {
			return errors.New(errors.ErrCodeOrderAlreadyDecided, "order is not awaiting payment proof")
		}

		merged := models.JSONMap{}
		for k, v := range order.Metadata {
			merged[k] = v
		}
		for k, v := range proof {
			merged[k] = v
		}
		if err := tx.Orders().SetMetadata(ctx, orderID, merged); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to store payment proof")
		}
		if err := tx.Orders().UpdateStatus(ctx, orderID,
			models.OrderStatusAwaitingProof, models.OrderStatusPending); err != nil {
			if err == repositories.ErrStaleRecord {
				return errors.New(errors.ErrCodeOrderAlreadyDecided, "order is no longer awaiting payment proof")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update order status")
		}
		order.Metadata = merged
		order.Status = models.OrderStatusPending

		return writeAudit(ctx, tx, userID, "", models.AuditOrderProof, "order", orderID, nil)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel lets the owner withdraw a not-yet-decided order. Cancelling a
// withdrawal refunds its hold in the same transaction. Cancellation of a
// decided order is rejected, never applied partially.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID string) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		order, err = tx.Orders().Get(ctx, orderID)
		if err != nil {
			if err == repositories.ErrNotFound {
				return errors.New(errors.ErrCodeOrderNotFound, "order not found")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to load order")
		}
		if order.UserID != userID {
			return errors.New(errors.ErrCodeForbidden, "order belongs to another user")
		}

		now := time.Now().UTC()
		err = tx.Orders().Decide(ctx, orderID,
			[]string{models.OrderStatusPending, models.OrderStatusAwaitingProof},
			repositories.OrderDecision{
				Status:    models.OrderStatusCancelled,
				Reason:    "cancelled by user",
				DecidedBy: userID,
				DecidedAt: now,
			})
		if err == repositories.ErrStaleRecord {
			return errors.New(errors.ErrCodeOrderAlreadyDecided, "order already decided")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to cancel order")
		}
		order.Status = models.OrderStatusCancelled
		order.DecidedBy = userID
		order.DecidedAt = &now

		if order.Type == models.OrderTypeWithdrawal {
			_, err := appendEntry(ctx, tx, userID, models.EntryKindRefund,
				order.Amount, models.ReferenceTypeOrder, order.ID, "withdrawal hold refund on cancel")
			if err != nil {
				return err
			}
		}

		return writeAudit(ctx, tx, userID, "", models.AuditOrderCancelled, "order", orderID, nil)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("order cancelled", "order_id", orderID, "user_id", userID)
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return nil, errors.New(errors.ErrCodeOrderNotFound, "order not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load order")
	}
	return order, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Orders().ListByUser(ctx, userID, limit)
}

// ListPending returns the admin review queue, oldest first.
func (s *OrderService) ListPending(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.Orders().ListByStatus(ctx,
		[]string{models.OrderStatusPending, models.OrderStatusAwaitingProof}, limit)
}

// FlagStalePending audits pending orders older than the threshold so
// operators see requests stuck in the queue. Called from the scheduler.
func (s *OrderService) FlagStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	orders, err := s.store.Orders().ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list stale orders")
	}
	for _, order := range orders {
		err := writeAudit(ctx, s.store, models.SystemActor, models.SystemActor,
			models.AuditOrderStale, "order", order.ID, models.JSONMap{
				"order_type": order.Type,
				"age_hours":  fmt.Sprintf("%.1f", time.Since(order.CreatedAt).Hours()),
			})
		if err != nil {
			return 0, err
		}
	}
	return len(orders), nil
}
