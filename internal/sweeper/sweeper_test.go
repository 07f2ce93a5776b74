package sweeper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmmrfll/owl-ai-backend/types"
)

type fakeSubStore struct {
	expired []types.Subscription
	sweeps  atomic.Int32
}

func (f *fakeSubStore) Activate(ctx context.Context, userID int64, tariffName string, details types.PaymentDetails) (*types.Subscription, error) {
	return nil, nil
}

func (f *fakeSubStore) GetActive(ctx context.Context, userID int64) (*types.Subscription, error) {
	return nil, nil
}

func (f *fakeSubStore) ExpireOverdue(ctx context.Context) ([]types.Subscription, error) {
	f.sweeps.Add(1)
	out := f.expired
	f.expired = nil
	return out, nil
}

type fakeUserStore struct{}

func (f *fakeUserStore) UpsertUser(ctx context.Context, user types.User) error { return nil }
func (f *fakeUserStore) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	return &types.User{UserID: userID, ChatID: userID}, nil
}

func stubBot(t *testing.T, sent *atomic.Int32) *bot.Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sent.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test-token", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b
}

func TestSweepNotifiesExpiredUsers(t *testing.T) {
	var sent atomic.Int32
	subs := &fakeSubStore{expired: []types.Subscription{
		{ID: 1, UserID: 42, TariffName: "gold", EndDate: time.Now().Add(-time.Hour)},
		{ID: 2, UserID: 43, TariffName: "silver", EndDate: time.Now().Add(-2 * time.Hour)},
	}}
	s := NewSweeper(subs, &fakeUserStore{}, stubBot(t, &sent))

	s.sweep()

	assert.Equal(t, int32(1), subs.sweeps.Load())
	assert.Equal(t, int32(2), sent.Load())
}

func TestSweepSkipsUnknownTariff(t *testing.T) {
	var sent atomic.Int32
	subs := &fakeSubStore{expired: []types.Subscription{
		{ID: 1, UserID: 42, TariffName: "nosuch", EndDate: time.Now().Add(-time.Hour)},
	}}
	s := NewSweeper(subs, &fakeUserStore{}, stubBot(t, &sent))

	s.sweep()

	assert.Equal(t, int32(0), sent.Load())
}

func TestStartStop(t *testing.T) {
	var sent atomic.Int32
	s := NewSweeper(&fakeSubStore{}, &fakeUserStore{}, stubBot(t, &sent))

	require.NoError(t, s.Start(""))
	// Start is idempotent
	require.NoError(t, s.Start(""))
	s.Stop()
	s.Stop()
}
