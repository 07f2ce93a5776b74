package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hmmrfll/owl-ai-backend/internal/callback"
	"github.com/hmmrfll/owl-ai-backend/internal/contextkeys"
	"github.com/hmmrfll/owl-ai-backend/internal/invoice"
	"github.com/hmmrfll/owl-ai-backend/internal/messages"
	"github.com/hmmrfll/owl-ai-backend/internal/payment"
	"github.com/hmmrfll/owl-ai-backend/internal/tariffs"
	"github.com/hmmrfll/owl-ai-backend/internal/utils"
	"github.com/hmmrfll/owl-ai-backend/types"
)

func (bh *Handlers) HandleClickButton(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	userID := update.CallbackQuery.From.ID
	chatID := int64(0)
	messageID := 0
	if update.CallbackQuery.Message.Message != nil {
		chatID = update.CallbackQuery.Message.Message.Chat.ID
		messageID = update.CallbackQuery.Message.Message.ID
	}
	if chatID == 0 {
		chatID = userID
	}

	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = update.CallbackQuery.Data
	}

	cmd, err := callback.Parse(data)
	if err != nil {
		log.Printf("Invalid callback data %q from user %d: %v", data, userID, err)
		bh.answerCallback(ctx, b, update.CallbackQuery.ID, "")
		return
	}

	// the stars check button carries the user id the invoice was issued
	// for; presses from anyone else get an alert and nothing more
	if cmd.Kind == callback.KindCheckStarsPayment && cmd.UserID != 0 && cmd.UserID != userID {
		bh.answerCallbackAlert(ctx, b, update.CallbackQuery.ID, "Эта кнопка адресована другому пользователю.")
		return
	}

	bh.answerCallback(ctx, b, update.CallbackQuery.ID, "")

	switch cmd.Kind {
	case callback.KindSubscriptionMenu:
		bh.editOrSend(ctx, b, chatID, messageID, messages.SubscriptionMenu(), tariffMenuKeyboard())
	case callback.KindBackToMain:
		kb := utils.SingleColumn(utils.Button{Text: "💎 Тарифы", CallbackData: callback.SubscriptionMenu()})
		firstName := update.CallbackQuery.From.FirstName
		bh.editOrSend(ctx, b, chatID, messageID, messages.StartWelcome(firstName), &kb)
	case callback.KindTariffDetails:
		bh.showTariffDetails(ctx, b, chatID, messageID, cmd.Tariff)
	case callback.KindSelectTariff:
		bh.showPaymentMethods(ctx, b, chatID, messageID, cmd.Tariff)
	case callback.KindPay:
		bh.handlePay(ctx, b, chatID, messageID, userID, cmd)
	case callback.KindCheckPayment:
		bh.handleCheckCryptoPayment(ctx, b, chatID, userID, cmd.InvoiceID)
	case callback.KindInitiateStarsPayment:
		bh.handleInitiateTelegramPayment(ctx, b, chatID, userID, cmd.Tariff, types.MethodStars)
	case callback.KindInitiateCardPayment:
		bh.handleInitiateTelegramPayment(ctx, b, chatID, userID, cmd.Tariff, types.MethodCard)
	case callback.KindCheckStarsPayment:
		bh.handleCheckStarsPayment(ctx, b, chatID, userID, cmd)
	default:
		bh.send(ctx, b, chatID, messages.ErrorDefault(), nil)
	}
}

func (bh *Handlers) showTariffDetails(ctx context.Context, b *bot.Bot, chatID int64, messageID int, tariffName string) {
	def, err := tariffs.Get(tariffName)
	if err != nil {
		bh.editOrSend(ctx, b, chatID, messageID, messages.ErrorDefault(), nil)
		return
	}
	kb := utils.SingleColumn(
		utils.Button{Text: "✅ Оформить", CallbackData: callback.SelectTariff(def.Name)},
		utils.Button{Text: "⬅️ Назад", CallbackData: callback.SubscriptionMenu()},
	)
	bh.editOrSend(ctx, b, chatID, messageID, messages.TariffDetails(&def), &kb)
}

func (bh *Handlers) showPaymentMethods(ctx context.Context, b *bot.Bot, chatID int64, messageID int, tariffName string) {
	def, err := tariffs.Get(tariffName)
	if err != nil {
		bh.editOrSend(ctx, b, chatID, messageID, messages.ErrorDefault(), nil)
		return
	}
	kb := utils.SingleColumn(
		utils.Button{Text: "🪙 Криптовалюта", CallbackData: callback.Pay(types.MethodCrypto, def.Name)},
		utils.Button{Text: "⭐ Telegram Stars", CallbackData: callback.InitiateStarsPayment(def.Name)},
		utils.Button{Text: "💳 Банковская карта", CallbackData: callback.InitiateCardPayment(def.Name)},
		utils.Button{Text: "⬅️ Назад", CallbackData: callback.TariffDetails(def.Name)},
	)
	bh.editOrSend(ctx, b, chatID, messageID, messages.PaymentMethods(&def), &kb)
}

func (bh *Handlers) handlePay(ctx context.Context, b *bot.Bot, chatID int64, messageID int, userID int64, cmd callback.Command) {
	switch cmd.Method {
	case types.MethodStars, types.MethodCard:
		bh.handleInitiateTelegramPayment(ctx, b, chatID, userID, cmd.Tariff, cmd.Method)
		return
	}

	def, err := tariffs.Get(cmd.Tariff)
	if err != nil {
		bh.editOrSend(ctx, b, chatID, messageID, messages.ErrorDefault(), nil)
		return
	}

	payCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	entry, err := bh.crypto.CreateInvoice(payCtx, b, chatID, userID, &def)
	if errors.Is(err, payment.ErrUnavailable) {
		bh.editOrSend(ctx, b, chatID, messageID, messages.PaymentMethodUnavailable(), nil)
		return
	}
	if err != nil {
		log.Printf("Error creating crypto invoice for user %d tariff %s: %v", userID, cmd.Tariff, err)
		bh.editOrSend(ctx, b, chatID, messageID, messages.PaymentUnknown(), nil)
		return
	}

	kb := utils.SingleColumn(
		utils.Button{Text: "🪙 Оплатить", URL: entry.PayURL},
		utils.Button{Text: "🔄 Проверить оплату", CallbackData: callback.CheckPayment(entry.ID)},
		utils.Button{Text: "⬅️ Назад", CallbackData: callback.SelectTariff(def.Name)},
	)
	bh.editOrSend(ctx, b, chatID, messageID, messages.CryptoInvoiceCreated(&def), &kb)
}

func (bh *Handlers) handleCheckCryptoPayment(ctx context.Context, b *bot.Bot, chatID, userID int64, invoiceID string) {
	checkCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	status, entry, err := bh.crypto.CheckInvoice(checkCtx, invoiceID)
	if err != nil {
		log.Printf("Error checking crypto invoice %s: %v", invoiceID, err)
		bh.send(ctx, b, chatID, messages.PaymentUnknown(), nil)
		return
	}
	if entry == nil {
		if done, _ := bh.tracker.IsProcessed(checkCtx, invoiceID); done {
			bh.send(ctx, b, chatID, messages.PaymentAlreadyProcessed(), nil)
			return
		}
		bh.send(ctx, b, chatID, messages.PaymentNotFound(), nil)
		return
	}

	switch status {
	case types.InvoiceConfirmed:
		bh.completePayment(ctx, b, chatID, entry.UserID, entry.Tariff)
	case types.InvoicePending:
		bh.send(ctx, b, chatID, messages.PaymentPending(), nil)
	case types.InvoiceExpired:
		bh.send(ctx, b, chatID, messages.PaymentExpired(), nil)
	default:
		bh.send(ctx, b, chatID, messages.PaymentUnknown(), nil)
	}
}

func (bh *Handlers) handleInitiateTelegramPayment(ctx context.Context, b *bot.Bot, chatID, userID int64, tariffName string, method types.PaymentMethod) {
	def, err := tariffs.Get(tariffName)
	if err != nil {
		bh.send(ctx, b, chatID, messages.ErrorDefault(), nil)
		return
	}

	backend, ok := bh.payments.ByMethod(method)
	if !ok {
		bh.send(ctx, b, chatID, messages.PaymentMethodUnavailable(), nil)
		return
	}

	payCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if _, err := backend.CreateInvoice(payCtx, b, chatID, userID, &def); err != nil {
		if errors.Is(err, payment.ErrUnavailable) {
			bh.send(ctx, b, chatID, messages.PaymentMethodUnavailable(), nil)
			return
		}
		log.Printf("Error creating %s invoice for user %d tariff %s: %v", method, userID, tariffName, err)
		bh.send(ctx, b, chatID, messages.PaymentUnknown(), nil)
		return
	}

	if method == types.MethodStars {
		kb := utils.SingleColumn(
			utils.Button{Text: "🔄 Проверить оплату", CallbackData: callback.CheckStarsPayment(def.Name, userID)},
		)
		bh.send(ctx, b, chatID, "⭐ Счёт отправлен, оплатите его в сообщении выше.", &kb)
	}
}

func (bh *Handlers) handleCheckStarsPayment(ctx context.Context, b *bot.Bot, chatID, userID int64, cmd callback.Command) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	backend, ok := bh.payments.ByMethod(types.MethodStars)
	if !ok {
		bh.send(ctx, b, chatID, messages.PaymentMethodUnavailable(), nil)
		return
	}
	status, entry, err := backend.CheckStatus(checkCtx, userID, cmd.Tariff)
	if err != nil {
		log.Printf("Error checking stars payment for user %d tariff %s: %v", userID, cmd.Tariff, err)
		bh.send(ctx, b, chatID, messages.PaymentUnknown(), nil)
		return
	}
	if entry == nil {
		if done, _ := bh.tracker.IsProcessed(checkCtx, invoice.PairKey(userID, cmd.Tariff)); done {
			bh.send(ctx, b, chatID, messages.PaymentAlreadyProcessed(), nil)
			return
		}
		bh.send(ctx, b, chatID, messages.PaymentNotFound(), nil)
		return
	}

	switch status {
	case types.InvoiceConfirmed:
		bh.completePayment(ctx, b, chatID, userID, cmd.Tariff)
	case types.InvoicePending:
		bh.send(ctx, b, chatID, messages.PaymentPending(), nil)
	case types.InvoiceExpired:
		bh.send(ctx, b, chatID, messages.PaymentExpired(), nil)
	default:
		bh.send(ctx, b, chatID, messages.PaymentUnknown(), nil)
	}
}
