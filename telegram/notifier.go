package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/pkg/logger"
)

// OrderCreated posts a new client order to the admin chat with the
// approval keyboard. Admin adjustments and auto-approved orders arrive
// already decided and are announced without buttons.
func (b *Bot) OrderCreated(ctx context.Context, order *models.Order, user *models.User) {
	text := fmt.Sprintf(
		"New %s order\nUser: %s\nAmount: %s\nStatus: %s\nOrder: %s",
		order.Type, user.Username, order.Amount.StringFixed(2), order.Status, order.ID)

	msg := tgbotapi.NewMessage(b.adminChatID, text)
	if !order.Terminal() {
		msg.ReplyMarkup = approvalKeyboard(order.ID)
	}
	if _, err := b.api.Send(msg); err != nil {
		logger.Warn("Failed to notify admin chat of new order",
			"order_id", order.ID, "error", err)
	}
}

// OrderDecided announces decisions taken outside the admin chat (API
// decisions, auto-approvals) so the chat stays a complete review log.
func (b *Bot) OrderDecided(ctx context.Context, order *models.Order) {
	text := fmt.Sprintf(
		"Order %s %s\nType: %s\nAmount: %s\nBy: %s",
		order.ID, order.Status, order.Type, order.Amount.StringFixed(2), order.DecidedBy)

	if _, err := b.api.Send(tgbotapi.NewMessage(b.adminChatID, text)); err != nil {
		logger.Warn("Failed to notify admin chat of decision",
			"order_id", order.ID, "error", err)
	}
}
