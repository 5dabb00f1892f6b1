package services

import (
	"context"

	"github.com/finplay/settlement/internal/models"
)

// Notifier receives settlement events for delivery to an external channel
// (the Telegram admin chat in production). Delivery is best-effort and
// happens after the owning transaction commits; a failed notification
// never affects order state.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order, user *models.User)
	OrderDecided(ctx context.Context, order *models.Order)
}

// NopNotifier discards all events. Used in tests and when no Telegram
// token is configured.
type NopNotifier struct{}

func (NopNotifier) OrderCreated(ctx context.Context, order *models.Order, user *models.User) {}
func (NopNotifier) OrderDecided(ctx context.Context, order *models.Order)                    {}
