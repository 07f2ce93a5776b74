package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-telegram/bot"

	"github.com/hmmrfll/owl-ai-backend/internal/cryptopay"
	"github.com/hmmrfll/owl-ai-backend/internal/invoice"
	"github.com/hmmrfll/owl-ai-backend/types"
)

// CryptoBackend pays through an external crypto invoice service. The user
// follows a pay URL, so confirmation is pull-based: the bot re-queries the
// provider when the user presses the check button.
type CryptoBackend struct {
	client  *cryptopay.Client
	tracker *invoice.Tracker
}

func NewCryptoBackend(client *cryptopay.Client, tracker *invoice.Tracker) *CryptoBackend {
	return &CryptoBackend{client: client, tracker: tracker}
}

func (cb *CryptoBackend) Method() types.PaymentMethod {
	return types.MethodCrypto
}

func (cb *CryptoBackend) CreateInvoice(ctx context.Context, _ *bot.Bot, _ int64, userID int64, def *types.TariffDefinition) (*invoice.Entry, error) {
	if !cb.client.Configured() {
		return nil, ErrUnavailable
	}

	payload := types.InvoicePayload{
		Tariff:    def.Name,
		UserID:    userID,
		Method:    types.MethodCrypto,
		Timestamp: time.Now().Unix(),
	}

	inv, err := cb.client.CreateInvoice(ctx, cryptopay.CreateInvoiceParams{
		CurrencyType:   "fiat",
		Fiat:           "RUB",
		AcceptedAssets: "TON,USDT,BTC",
		Amount:         strconv.Itoa(def.PriceRub),
		Description:    fmt.Sprintf("Подписка «%s» на 1 месяц", def.DisplayName),
		Payload:        payload.Encode(),
		ExpiresIn:      3600,
	})
	if err != nil {
		return nil, fmt.Errorf("create crypto invoice: %w", err)
	}

	// a fresh invoice obsoletes any previous attempt for the same tariff
	entry, err := cb.tracker.Open(ctx, invoice.Entry{
		ID:       strconv.FormatInt(inv.InvoiceID, 10),
		UserID:   userID,
		Tariff:   def.Name,
		Method:   types.MethodCrypto,
		Amount:   float64(def.PriceRub),
		Currency: "RUB",
		PayURL:   inv.BotInvoiceURL,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("track crypto invoice: %w", err)
	}
	return entry, nil
}

func (cb *CryptoBackend) CheckStatus(ctx context.Context, userID int64, tariff string) (types.InvoiceStatus, *invoice.Entry, error) {
	entry, err := cb.tracker.Get(ctx, userID, tariff)
	if errors.Is(err, invoice.ErrNotFound) {
		return types.InvoiceUnknown, nil, nil
	}
	if err != nil {
		return types.InvoiceUnknown, nil, err
	}
	return cb.refresh(ctx, entry)
}

// CheckInvoice resolves an attempt by provider invoice id, for the check
// button under an already-sent invoice message.
func (cb *CryptoBackend) CheckInvoice(ctx context.Context, invoiceID string) (types.InvoiceStatus, *invoice.Entry, error) {
	entry, err := cb.tracker.GetByID(ctx, invoiceID)
	if errors.Is(err, invoice.ErrNotFound) {
		return types.InvoiceUnknown, nil, nil
	}
	if err != nil {
		return types.InvoiceUnknown, nil, err
	}
	return cb.refresh(ctx, entry)
}

// refresh re-queries the provider and folds the observation into the
// tracker. Provider errors leave the local state untouched and report
// unknown so the user can simply retry.
func (cb *CryptoBackend) refresh(ctx context.Context, entry *invoice.Entry) (types.InvoiceStatus, *invoice.Entry, error) {
	if entry.Status == types.InvoiceConfirmed {
		return types.InvoiceConfirmed, entry, nil
	}

	remote, err := cb.client.GetInvoiceByID(ctx, entry.ID)
	if err != nil {
		log.Printf("cryptopay: status check for invoice %s: %v", entry.ID, err)
		return types.InvoiceUnknown, entry, nil
	}
	if remote == nil {
		return types.InvoiceUnknown, entry, nil
	}

	status := cryptopay.ClassifyStatus(remote.Status)
	updated, err := cb.tracker.SetStatus(ctx, entry.UserID, entry.Tariff, status)
	if err != nil {
		log.Printf("cryptopay: persist status for invoice %s: %v", entry.ID, err)
		return status, entry, nil
	}
	return updated.Status, updated, nil
}
