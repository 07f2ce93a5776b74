package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmmrfll/owl-ai-backend/internal/invoice"
	"github.com/hmmrfll/owl-ai-backend/internal/ledger"
	"github.com/hmmrfll/owl-ai-backend/internal/payment"
	"github.com/hmmrfll/owl-ai-backend/store"
	"github.com/hmmrfll/owl-ai-backend/types"
)

type fakeUserStore struct{}

func (f *fakeUserStore) UpsertUser(ctx context.Context, user types.User) error { return nil }
func (f *fakeUserStore) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	return nil, nil
}

type fakeSubStore struct {
	activations atomic.Int32
	failNext    atomic.Bool

	mu     sync.Mutex
	active *types.Subscription
}

func (f *fakeSubStore) Activate(ctx context.Context, userID int64, tariffName string, details types.PaymentDetails) (*types.Subscription, error) {
	if f.failNext.CompareAndSwap(true, false) {
		return nil, context.DeadlineExceeded
	}
	f.activations.Add(1)
	sub := &types.Subscription{
		UserID:        userID,
		TariffName:    tariffName,
		StartDate:     time.Now(),
		EndDate:       time.Now().AddDate(0, 1, 0),
		IsActive:      true,
		PaymentID:     details.PaymentID,
		PaymentMethod: details.Method,
		PaymentAmount: details.Amount,
	}
	f.mu.Lock()
	f.active = sub
	f.mu.Unlock()
	return sub, nil
}

func (f *fakeSubStore) GetActive(ctx context.Context, userID int64) (*types.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeSubStore) ExpireOverdue(ctx context.Context) ([]types.Subscription, error) {
	return nil, nil
}

type fakeUsageStore struct{}

func (f *fakeUsageStore) RecordUsage(ctx context.Context, userID int64, kind types.ResourceKind, amount int) error {
	return nil
}

func (f *fakeUsageStore) MonthlyUsage(ctx context.Context, userID int64) (types.MonthlyUsage, error) {
	return types.MonthlyUsage{}, nil
}

// stubBot returns a bot wired to a local server that accepts every API call.
func stubBot(t *testing.T) *bot.Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test-token", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b
}

func newPaymentFixture(t *testing.T) (*Handlers, *fakeSubStore, *invoice.Tracker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := store.NewRedisClient(mr.Addr(), "", 0, "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	tracker := invoice.NewTracker(client, time.Minute)
	subs := &fakeSubStore{}
	l := ledger.New(subs, &fakeUsageStore{})
	registry := payment.NewRegistry(payment.NewStarsBackend(tracker))

	h := NewHandlers(&fakeUserStore{}, subs, l, tracker, registry, nil, nil)
	return h, subs, tracker
}

func starsPaymentUpdate(userID int64, tariff string) *models.Update {
	payload := types.InvoicePayload{Tariff: tariff, UserID: userID, Method: types.MethodStars}
	return &models.Update{
		Message: &models.Message{
			Chat: models.Chat{ID: userID},
			From: &models.User{ID: userID},
			SuccessfulPayment: &models.SuccessfulPayment{
				Currency:                "XTR",
				TotalAmount:             180,
				InvoicePayload:          payload.Encode(),
				TelegramPaymentChargeID: "tg-charge-1",
			},
		},
	}
}

func TestSuccessfulPaymentActivatesOnce(t *testing.T) {
	h, subs, _ := newPaymentFixture(t)
	b := stubBot(t)
	ctx := context.Background()

	update := starsPaymentUpdate(42, "gold")
	h.HandleSuccessfulPayment(ctx, b, update)
	assert.Equal(t, int32(1), subs.activations.Load())
	require.NotNil(t, subs.active)
	assert.Equal(t, "gold", subs.active.TariffName)
	assert.Equal(t, "tg-charge-1", subs.active.PaymentID)
	assert.Equal(t, types.MethodStars, subs.active.PaymentMethod)

	// platforms redeliver; the second confirmation must not activate again
	h.HandleSuccessfulPayment(ctx, b, update)
	assert.Equal(t, int32(1), subs.activations.Load())
}

func TestSuccessfulPaymentConcurrentRedeliveryActivatesOnce(t *testing.T) {
	h, subs, _ := newPaymentFixture(t)
	b := stubBot(t)
	ctx := context.Background()

	update := starsPaymentUpdate(42, "gold")
	const deliveries = 6
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.HandleSuccessfulPayment(ctx, b, update)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), subs.activations.Load())
	require.NotNil(t, subs.active)
	assert.Equal(t, "tg-charge-1", subs.active.PaymentID)
}

func TestSuccessfulPaymentRetryAfterActivationFailure(t *testing.T) {
	h, subs, tracker := newPaymentFixture(t)
	b := stubBot(t)
	ctx := context.Background()

	subs.failNext.Store(true)
	update := starsPaymentUpdate(42, "gold")
	h.HandleSuccessfulPayment(ctx, b, update)
	assert.Equal(t, int32(0), subs.activations.Load())

	// the claim was restored, so the check button can finish the job
	entry, err := tracker.Get(ctx, 42, "gold")
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceConfirmed, entry.Status)

	h.completePayment(ctx, b, 42, 42, "gold")
	assert.Equal(t, int32(1), subs.activations.Load())
}

func TestCompletePaymentWithoutClaimSaysAlreadyProcessed(t *testing.T) {
	h, subs, _ := newPaymentFixture(t)
	b := stubBot(t)

	h.completePayment(context.Background(), b, 42, 42, "gold")
	assert.Equal(t, int32(0), subs.activations.Load())
}

func starsCheckUpdate(presserID int64, data string) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			From: models.User{ID: presserID},
			Data: data,
		},
	}
}

func TestStarsCheckButtonHonorsOwner(t *testing.T) {
	h, subs, tracker := newPaymentFixture(t)
	b := stubBot(t)
	ctx := context.Background()

	_, err := tracker.MarkConfirmed(ctx, 42, "gold", types.MethodStars, "tg-charge-1", 180, "XTR")
	require.NoError(t, err)

	// somebody else pressing the owner's check button changes nothing
	h.HandleClickButton(ctx, b, starsCheckUpdate(99, "check_stars_payment_gold_42"))
	assert.Equal(t, int32(0), subs.activations.Load())

	h.HandleClickButton(ctx, b, starsCheckUpdate(42, "check_stars_payment_gold_42"))
	assert.Equal(t, int32(1), subs.activations.Load())
}

func TestPreCheckoutRejectsUnknownTariff(t *testing.T) {
	h, _, _ := newPaymentFixture(t)
	b := stubBot(t)

	payload := types.InvoicePayload{Tariff: "nosuch", UserID: 42}
	update := &models.Update{
		PreCheckoutQuery: &models.PreCheckoutQuery{
			ID:             "pcq-1",
			From:           &models.User{ID: 42},
			Currency:       "XTR",
			TotalAmount:    180,
			InvoicePayload: payload.Encode(),
		},
	}
	// must not panic and must answer the query; rejection is visible only
	// to the stub server, so this is a smoke check of the decode path
	h.HandlePreCheckout(context.Background(), b, update)
}
