package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/finplay/settlement/internal/config"
	"github.com/finplay/settlement/internal/models"
	"github.com/finplay/settlement/internal/services"
	"github.com/finplay/settlement/pkg/errors"
	"github.com/finplay/settlement/pkg/logger"
)

// Callback data prefixes for the approval keyboard.
const (
	callbackApprove = "ord_approve_"
	callbackReject  = "ord_reject_"
)

// Bot posts new client orders to the admin chat and turns the inline
// Approve/Reject buttons into decisions. The approval service is the
// single decision path, so a Telegram tap and an API call racing on the
// same order still decide it exactly once.
type Bot struct {
	api         *tgbotapi.BotAPI
	adminChatID int64
	approval    *services.ApprovalService
	settings    *services.SettingsService
}

func InitBot(cfg *config.Config, approval *services.ApprovalService, settings *services.SettingsService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if cfg.AppEnv == "development" {
		api.Debug = true
	}
	logger.Info("Authorized on account", "username", api.Self.UserName)

	bot := &Bot{
		api:         api,
		adminChatID: cfg.AdminChatID,
		approval:    approval,
		settings:    settings,
	}
	go bot.startUpdateListener()
	return bot, nil
}

func (b *Bot) startUpdateListener() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for {
		logger.Info("Starting update listener...")
		updates := b.api.GetUpdatesChan(u)

		for update := range updates {
			if update.CallbackQuery != nil {
				go b.handleCallbackQuery(update.CallbackQuery)
			}
		}

		logger.Warn("Update channel closed. Restarting in 5 seconds...")
		time.Sleep(5 * time.Second)
	}
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in handleCallbackQuery", "error", r)
		}
	}()

	// Only taps inside the configured admin chat count as decisions.
	if query.Message == nil || query.Message.Chat.ID != b.adminChatID {
		b.answer(query.ID, "not authorized")
		return
	}

	var orderID, action string
	switch {
	case strings.HasPrefix(query.Data, callbackApprove):
		orderID = strings.TrimPrefix(query.Data, callbackApprove)
		action = models.ActionApprove
	case strings.HasPrefix(query.Data, callbackReject):
		orderID = strings.TrimPrefix(query.Data, callbackReject)
		action = models.ActionReject
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snapshot, err := b.settings.Snapshot(ctx)
	if err != nil {
		logger.Error("Failed to load settings for telegram decision", "error", err)
		b.answer(query.ID, "decision failed, try again")
		return
	}

	actorID := fmt.Sprintf("tg:%d", query.From.ID)
	actorName := query.From.UserName
	if actorName == "" {
		actorName = query.From.FirstName
	}

	reason := ""
	if action == models.ActionReject {
		reason = "rejected from admin chat"
	}

	order, err := b.approval.ProcessAction(ctx, services.ActionInput{
		ActorID:   actorID,
		ActorName: actorName,
		OrderID:   orderID,
		Action:    action,
		Reason:    reason,
	}, snapshot)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeOrderAlreadyDecided) {
			b.answer(query.ID, "already decided")
			b.stripKeyboard(query.Message)
			return
		}
		logger.Error("Telegram decision failed",
			"order_id", orderID, "action", action, "error", err)
		b.answer(query.ID, "decision failed: "+errors.Code(err))
		return
	}

	b.answer(query.ID, fmt.Sprintf("order %s", order.Status))
	edit := tgbotapi.NewEditMessageText(b.adminChatID, query.Message.MessageID,
		query.Message.Text+fmt.Sprintf("\n\n%s by @%s", order.Status, actorName))
	if _, err := b.api.Send(edit); err != nil {
		logger.Warn("Failed to edit decision message", "error", err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		logger.Warn("Failed to answer callback", "error", err)
	}
}

func (b *Bot) stripKeyboard(message *tgbotapi.Message) {
	edit := tgbotapi.NewEditMessageReplyMarkup(b.adminChatID, message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Send(edit); err != nil {
		logger.Warn("Failed to strip keyboard", "error", err)
	}
}

// approvalKeyboard builds the Approve/Reject buttons for one order.
func approvalKeyboard(orderID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", callbackApprove+orderID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", callbackReject+orderID),
		),
	)
}
