package invoice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmmrfll/owl-ai-backend/store"
	"github.com/hmmrfll/owl-ai-backend/types"
)

func newTestTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := store.NewRedisClient(mr.Addr(), "", 0, "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewTracker(client, time.Minute), mr
}

func pendingEntry(userID int64, tariff string) Entry {
	return Entry{
		ID:       "inv-1",
		UserID:   userID,
		Tariff:   tariff,
		Method:   types.MethodCrypto,
		Amount:   199,
		Currency: "RUB",
		PayURL:   "https://t.me/CryptoBot?start=inv-1",
	}
}

func TestOpenReusesExistingWithoutSupersede(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	first, err := tr.Open(ctx, pendingEntry(42, "gold"), false)
	require.NoError(t, err)
	assert.Equal(t, types.InvoicePending, first.Status)

	second := pendingEntry(42, "gold")
	second.ID = "inv-2"
	got, err := tr.Open(ctx, second, false)
	require.ErrorIs(t, err, ErrAlreadyOpen)
	assert.Equal(t, "inv-1", got.ID)
}

func TestOpenSupersedeReplacesEntry(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Open(ctx, pendingEntry(42, "gold"), false)
	require.NoError(t, err)

	second := pendingEntry(42, "gold")
	second.ID = "inv-2"
	got, err := tr.Open(ctx, second, true)
	require.NoError(t, err)
	assert.Equal(t, "inv-2", got.ID)

	cur, err := tr.Get(ctx, 42, "gold")
	require.NoError(t, err)
	assert.Equal(t, "inv-2", cur.ID)

	// the superseded attempt is gone, including its id lookup
	_, err = tr.GetByID(ctx, "inv-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tr.Claim(ctx, 42, "gold")
	require.NoError(t, err)
	_, err = tr.Get(ctx, 42, "gold")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmedStatusIsTerminal(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Open(ctx, pendingEntry(7, "silver"), false)
	require.NoError(t, err)

	_, err = tr.MarkConfirmed(ctx, 7, "silver", types.MethodCrypto, "charge-1", 199, "RUB")
	require.NoError(t, err)

	entry, err := tr.SetStatus(ctx, 7, "silver", types.InvoiceExpired)
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceConfirmed, entry.Status)
	assert.Equal(t, "charge-1", entry.PaymentID)
}

func TestMarkConfirmedCreatesMissingEntry(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	entry, err := tr.MarkConfirmed(ctx, 9, "diamond", types.MethodStars, "tg-charge", 490, "XTR")
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceConfirmed, entry.Status)
	assert.Equal(t, int64(9), entry.UserID)
	assert.Equal(t, "tg-charge", entry.PaymentID)
}

func TestClaimWinsExactlyOnce(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Open(ctx, pendingEntry(42, "gold"), false)
	require.NoError(t, err)
	_, err = tr.MarkConfirmed(ctx, 42, "gold", types.MethodCrypto, "charge-1", 199, "RUB")
	require.NoError(t, err)

	const workers = 8
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Claim(ctx, 42, "gold"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, ErrNotFound) {
				t.Errorf("claim: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRestoreAfterFailedActivation(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Open(ctx, pendingEntry(42, "gold"), false)
	require.NoError(t, err)
	claimed, err := tr.Claim(ctx, 42, "gold")
	require.NoError(t, err)

	require.NoError(t, tr.Restore(ctx, claimed))

	// the restored attempt is no longer considered processed
	done, err := tr.IsProcessed(ctx, claimed.Ref())
	require.NoError(t, err)
	assert.False(t, done)

	again, err := tr.Claim(ctx, 42, "gold")
	require.NoError(t, err)
	assert.Equal(t, claimed.ID, again.ID)
}

func TestClaimMarksPaymentProcessed(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	done, err := tr.IsProcessed(ctx, "inv-1")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = tr.Open(ctx, pendingEntry(42, "gold"), false)
	require.NoError(t, err)
	_, err = tr.Claim(ctx, 42, "gold")
	require.NoError(t, err)

	done, err = tr.IsProcessed(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, done)
	done, err = tr.IsProcessed(ctx, PairKey(42, "gold"))
	require.NoError(t, err)
	assert.True(t, done)
}

func TestMarkConfirmedRefusesProcessedCharge(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.MarkConfirmed(ctx, 9, "gold", types.MethodStars, "tg-charge", 180, "XTR")
	require.NoError(t, err)
	_, err = tr.Claim(ctx, 9, "gold")
	require.NoError(t, err)

	// same charge id delivered again must not recreate the claimed entry
	_, err = tr.MarkConfirmed(ctx, 9, "gold", types.MethodStars, "tg-charge", 180, "XTR")
	require.ErrorIs(t, err, ErrProcessed)
	_, err = tr.Get(ctx, 9, "gold")
	assert.ErrorIs(t, err, ErrNotFound)

	// a fresh payment for the same pair carries a new charge id and works
	entry, err := tr.MarkConfirmed(ctx, 9, "gold", types.MethodStars, "tg-charge-2", 180, "XTR")
	require.NoError(t, err)
	assert.Equal(t, "tg-charge-2", entry.PaymentID)
}

func TestEntriesExpireWithTTL(t *testing.T) {
	tr, mr := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Open(ctx, pendingEntry(42, "gold"), false)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = tr.Get(ctx, 42, "gold")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tr.GetByID(ctx, "inv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
