package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hmmrfll/owl-ai-backend/internal/invoice"
	"github.com/hmmrfll/owl-ai-backend/internal/messages"
	"github.com/hmmrfll/owl-ai-backend/internal/tariffs"
	"github.com/hmmrfll/owl-ai-backend/types"
)

// HandlePreCheckout approves or rejects the platform's pre-checkout ask.
// The only hard requirement is that the payload still maps to a known
// tariff; the user's money must not be taken for something we cannot grant.
func (bh *Handlers) HandlePreCheckout(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.PreCheckoutQuery == nil {
		return
	}

	payload, err := types.DecodeInvoicePayload(update.PreCheckoutQuery.InvoicePayload)
	ok := err == nil && tariffs.Exists(payload.Tariff) && payload.Tariff != tariffs.FreeTariff
	errorMessage := ""
	if !ok {
		log.Printf("Rejecting pre-checkout %s: payload %q", update.PreCheckoutQuery.ID, update.PreCheckoutQuery.InvoicePayload)
		errorMessage = "Некорректный платёж"
	}

	_, err = b.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: update.PreCheckoutQuery.ID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	if err != nil {
		log.Printf("Error answering pre-checkout %s: %v", update.PreCheckoutQuery.ID, err)
	}
}

// HandleSuccessfulPayment is the push confirmation for Stars and card
// checkout. The platform may deliver it more than once; the tracker claim in
// completePayment makes the activation run exactly once.
func (bh *Handlers) HandleSuccessfulPayment(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.SuccessfulPayment == nil {
		return
	}
	p := update.Message.SuccessfulPayment
	chatID := update.Message.Chat.ID
	userID := bh.getUserIDFromUpdate(update)

	payload, err := types.DecodeInvoicePayload(p.InvoicePayload)
	if err != nil || !tariffs.Exists(payload.Tariff) {
		log.Printf("Successful payment with unusable payload %q from user %d", p.InvoicePayload, userID)
		bh.send(ctx, b, chatID, messages.ErrorDefault(), nil)
		return
	}
	if payload.UserID != 0 {
		userID = payload.UserID
	}

	guardCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	done, err := bh.tracker.IsProcessed(guardCtx, p.TelegramPaymentChargeID)
	cancel()
	if err != nil {
		log.Printf("Error checking processed marker for charge %s: %v", p.TelegramPaymentChargeID, err)
	}
	if done {
		bh.send(ctx, b, chatID, messages.PaymentAlreadyProcessed(), nil)
		return
	}

	method := payload.Method
	amount := float64(p.TotalAmount)
	if strings.EqualFold(strings.TrimSpace(p.Currency), "XTR") {
		method = types.MethodStars
	} else if method == "" {
		method = types.MethodCard
	}
	if method == types.MethodCard {
		amount = amount / 100
	}

	markCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = bh.tracker.MarkConfirmed(markCtx, userID, payload.Tariff, method, p.TelegramPaymentChargeID, amount, p.Currency)
	cancel()
	if errors.Is(err, invoice.ErrProcessed) {
		bh.send(ctx, b, chatID, messages.PaymentAlreadyProcessed(), nil)
		return
	}
	if err != nil {
		log.Printf("Error confirming %s payment for user %d tariff %s: %v", method, userID, payload.Tariff, err)
	}

	bh.completePayment(ctx, b, chatID, userID, payload.Tariff)
}

// completePayment claims the confirmed attempt and activates the
// subscription. The claim is the idempotency gate: it marks the payment
// processed as it removes the entry, and whoever loses it learns the
// payment is already handled.
func (bh *Handlers) completePayment(ctx context.Context, b *bot.Bot, chatID, userID int64, tariffName string) {
	claimCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	entry, err := bh.tracker.Claim(claimCtx, userID, tariffName)
	cancel()
	if errors.Is(err, invoice.ErrNotFound) {
		bh.send(ctx, b, chatID, messages.PaymentAlreadyProcessed(), nil)
		return
	}
	if err != nil {
		log.Printf("Error claiming payment for user %d tariff %s: %v", userID, tariffName, err)
		bh.send(ctx, b, chatID, messages.PaymentUnknown(), nil)
		return
	}

	activateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	sub, err := bh.subs.Activate(activateCtx, userID, tariffName, types.PaymentDetails{
		PaymentID: entry.Ref(),
		Method:    entry.Method,
		Amount:    entry.Amount,
	})
	cancel()
	if err != nil {
		log.Printf("Error activating %s for user %d: %v", tariffName, userID, err)
		// put the claim back so the user can press check again
		restoreCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if restoreErr := bh.tracker.Restore(restoreCtx, entry); restoreErr != nil {
			log.Printf("Error restoring payment entry %s: %v", entry.ID, restoreErr)
		}
		cancel()
		bh.send(ctx, b, chatID, messages.PaymentActivationFailed(), nil)
		return
	}

	def, defErr := tariffs.Get(tariffName)
	if defErr != nil {
		log.Printf("Activated unknown tariff %q for user %d", tariffName, userID)
		bh.send(ctx, b, chatID, messages.ErrorDefault(), nil)
		return
	}
	bh.send(ctx, b, chatID, messages.SubscriptionActivated(sub, &def), nil)
	bh.sendResourceSummary(ctx, b, chatID, userID)
}

func (bh *Handlers) sendResourceSummary(ctx context.Context, b *bot.Bot, chatID, userID int64) {
	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	state, err := bh.ledger.Resources(statusCtx, userID)
	if err != nil {
		log.Printf("Error loading resource summary for user %d: %v", userID, err)
		return
	}
	text := messages.ResourceStatus(
		state.Tariff,
		state.Subscription,
		state.Remaining(types.ResourcePhoto),
		state.Remaining(types.ResourceDocument),
		state.Remaining(types.ResourceAIRequest),
	)
	bh.send(ctx, b, chatID, text, nil)
}
