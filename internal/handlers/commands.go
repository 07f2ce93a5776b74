package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hmmrfll/owl-ai-backend/internal/callback"
	"github.com/hmmrfll/owl-ai-backend/internal/messages"
	"github.com/hmmrfll/owl-ai-backend/internal/tariffs"
	"github.com/hmmrfll/owl-ai-backend/internal/utils"
	"github.com/hmmrfll/owl-ai-backend/types"
)

func (bh *Handlers) HandleCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	command := strings.ToLower(strings.Fields(update.Message.Text)[0])
	if at := strings.Index(command, "@"); at != -1 {
		command = command[:at]
	}

	switch command {
	case "/start":
		bh.handleStart(ctx, b, update)
	case "/subscribe":
		bh.send(ctx, b, chatID, messages.SubscriptionMenu(), tariffMenuKeyboard())
	case "/status":
		bh.handleStatus(ctx, b, update)
	default:
		bh.send(ctx, b, chatID, messages.ErrorUnknownCommand(), nil)
	}
}

func (bh *Handlers) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	firstName := ""
	if update.Message.From != nil {
		firstName = update.Message.From.FirstName
	}
	kb := utils.SingleColumn(
		utils.Button{Text: "💎 Тарифы", CallbackData: callback.SubscriptionMenu()},
	)
	bh.send(ctx, b, chatID, messages.StartWelcome(firstName), &kb)
}

func (bh *Handlers) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	userID := bh.getUserIDFromUpdate(update)

	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	state, err := bh.ledger.Resources(statusCtx, userID)
	if err != nil {
		log.Printf("Error loading resource status for user %d: %v", userID, err)
		bh.send(ctx, b, chatID, messages.ErrorDefault(), nil)
		return
	}

	text := messages.ResourceStatus(
		state.Tariff,
		state.Subscription,
		state.Remaining(types.ResourcePhoto),
		state.Remaining(types.ResourceDocument),
		state.Remaining(types.ResourceAIRequest),
	)
	kb := utils.SingleColumn(
		utils.Button{Text: "💎 Тарифы", CallbackData: callback.SubscriptionMenu()},
	)
	bh.send(ctx, b, chatID, text, &kb)
}

func tariffMenuKeyboard() *models.InlineKeyboardMarkup {
	buttons := make([]utils.Button, 0, len(tariffs.Paid()))
	for _, def := range tariffs.Paid() {
		buttons = append(buttons, utils.Button{
			Text:         def.DisplayName,
			CallbackData: callback.TariffDetails(def.Name),
		})
	}
	buttons = append(buttons, utils.Button{Text: "⬅️ Назад", CallbackData: callback.BackToMain()})
	kb := utils.BuildInlineKeyboard(buttons, 1)
	return &kb
}
