package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/hmmrfll/owl-ai-backend/internal/invoice"
	"github.com/hmmrfll/owl-ai-backend/types"
)

// CardBackend pays by card through Telegram's provider checkout. Requires a
// provider token; without one the method is simply unavailable.
type CardBackend struct {
	tracker       *invoice.Tracker
	providerToken string
}

func NewCardBackend(tracker *invoice.Tracker, providerToken string) *CardBackend {
	return &CardBackend{tracker: tracker, providerToken: providerToken}
}

func (cb *CardBackend) Method() types.PaymentMethod {
	return types.MethodCard
}

func (cb *CardBackend) CreateInvoice(ctx context.Context, b *bot.Bot, chatID, userID int64, def *types.TariffDefinition) (*invoice.Entry, error) {
	if cb.providerToken == "" {
		return nil, ErrUnavailable
	}

	payload := types.InvoicePayload{
		Tariff:    def.Name,
		UserID:    userID,
		Method:    types.MethodCard,
		Timestamp: time.Now().Unix(),
	}

	entry, err := cb.tracker.Open(ctx, invoice.Entry{
		ID:       uuid.NewString(),
		UserID:   userID,
		Tariff:   def.Name,
		Method:   types.MethodCard,
		Amount:   float64(def.PriceRub),
		Currency: "RUB",
	}, false)
	if errors.Is(err, invoice.ErrAlreadyOpen) {
		// keep the open attempt, just send the invoice message again
	} else if err != nil {
		return nil, fmt.Errorf("track card invoice: %w", err)
	}

	priceKopeks := def.PriceRub * 100
	_, err = b.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:        chatID,
		Title:         fmt.Sprintf("Подписка «%s»", def.DisplayName),
		Description:   fmt.Sprintf("Тариф «%s» на 1 месяц", def.DisplayName),
		Payload:       payload.Encode(),
		ProviderToken: cb.providerToken,
		Currency:      "RUB",
		Prices:        []models.LabeledPrice{{Label: def.DisplayName, Amount: priceKopeks}},
	})
	if err != nil {
		return nil, fmt.Errorf("send card invoice: %w", err)
	}
	return entry, nil
}

func (cb *CardBackend) CheckStatus(ctx context.Context, userID int64, tariff string) (types.InvoiceStatus, *invoice.Entry, error) {
	entry, err := cb.tracker.Get(ctx, userID, tariff)
	if errors.Is(err, invoice.ErrNotFound) {
		return types.InvoiceUnknown, nil, nil
	}
	if err != nil {
		return types.InvoiceUnknown, nil, err
	}
	return entry.Status, entry, nil
}
