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

// StarsBackend pays with Telegram Stars. Confirmation is push-based: the
// platform delivers a successful-payment message, so CheckStatus is a local
// tracker read only.
type StarsBackend struct {
	tracker *invoice.Tracker
}

func NewStarsBackend(tracker *invoice.Tracker) *StarsBackend {
	return &StarsBackend{tracker: tracker}
}

func (sb *StarsBackend) Method() types.PaymentMethod {
	return types.MethodStars
}

func (sb *StarsBackend) CreateInvoice(ctx context.Context, b *bot.Bot, chatID, userID int64, def *types.TariffDefinition) (*invoice.Entry, error) {
	payload := types.InvoicePayload{
		Tariff:    def.Name,
		UserID:    userID,
		Method:    types.MethodStars,
		Timestamp: time.Now().Unix(),
	}

	entry, err := sb.tracker.Open(ctx, invoice.Entry{
		ID:       uuid.NewString(),
		UserID:   userID,
		Tariff:   def.Name,
		Method:   types.MethodStars,
		Amount:   float64(def.PriceStars),
		Currency: "XTR",
	}, false)
	if errors.Is(err, invoice.ErrAlreadyOpen) {
		// re-sending the invoice message for the open attempt is fine,
		// the tracker entry stays as is
	} else if err != nil {
		return nil, fmt.Errorf("track stars invoice: %w", err)
	}

	_, err = b.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:        chatID,
		Title:         fmt.Sprintf("Подписка «%s»", def.DisplayName),
		Description:   fmt.Sprintf("Тариф «%s» на 1 месяц", def.DisplayName),
		Payload:       payload.Encode(),
		Currency:      "XTR",
		Prices:        []models.LabeledPrice{{Label: def.DisplayName, Amount: def.PriceStars}},
		ProviderToken: "",
	})
	if err != nil {
		return nil, fmt.Errorf("send stars invoice: %w", err)
	}
	return entry, nil
}

func (sb *StarsBackend) CheckStatus(ctx context.Context, userID int64, tariff string) (types.InvoiceStatus, *invoice.Entry, error) {
	entry, err := sb.tracker.Get(ctx, userID, tariff)
	if errors.Is(err, invoice.ErrNotFound) {
		return types.InvoiceUnknown, nil, nil
	}
	if err != nil {
		return types.InvoiceUnknown, nil, err
	}
	return entry.Status, entry, nil
}
