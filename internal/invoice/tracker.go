// Package invoice tracks in-flight payment attempts between "invoice
// created" and "invoice resolved". Entries live in Redis under a TTL, so
// state survives process restarts and is shared when the bot runs in more
// than one instance.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hmmrfll/owl-ai-backend/store"
	"github.com/hmmrfll/owl-ai-backend/types"
)

var (
	ErrNotFound    = errors.New("invoice not found")
	ErrAlreadyOpen = errors.New("invoice already open for this tariff")
	ErrProcessed   = errors.New("payment already processed")
)

// DefaultTTL matches the one-hour expiry the crypto provider stamps on its
// invoices; an unconfirmed entry disappears on its own after that.
const DefaultTTL = time.Hour

// processedTTL is how long a finished payment keeps answering "already
// processed" to redelivered confirmation events.
const processedTTL = 30 * 24 * time.Hour

type Entry struct {
	ID        string              `json:"id"`
	UserID    int64               `json:"user_id"`
	Tariff    string              `json:"tariff"`
	Method    types.PaymentMethod `json:"method"`
	Amount    float64             `json:"amount"`
	Currency  string              `json:"currency"`
	Status    types.InvoiceStatus `json:"status"`
	PayURL    string              `json:"pay_url,omitempty"`
	PaymentID string              `json:"payment_id,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

func PairKey(userID int64, tariff string) string {
	return strconv.FormatInt(userID, 10) + ":" + tariff
}

// Ref is the external payment reference for this attempt: the platform
// charge id when one was stamped, otherwise the invoice id.
func (e *Entry) Ref() string {
	if e.PaymentID != "" {
		return e.PaymentID
	}
	return e.ID
}

type Tracker struct {
	client *store.RedisClient
	ttl    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTracker(client *store.RedisClient, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		client: client,
		ttl:    ttl,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockPair serializes same-pair operations inside one process. Cross-instance
// races are resolved by the atomic GETDEL in Claim.
func (t *Tracker) lockPair(userID int64, tariff string) func() {
	key := PairKey(userID, tariff)
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (t *Tracker) pairKey(userID int64, tariff string) string {
	return t.client.Key("invoice", "pair", strconv.FormatInt(userID, 10), tariff)
}

func (t *Tracker) idKey(id string) string {
	return t.client.Key("invoice", "id", id)
}

// Open registers a pending entry for (user, tariff). With supersede the new
// entry replaces whatever is there (a fresh crypto invoice obsoletes the old
// one); without it an existing entry is returned alongside ErrAlreadyOpen so
// the caller can point the user back at it.
func (t *Tracker) Open(ctx context.Context, entry Entry, supersede bool) (*Entry, error) {
	unlock := t.lockPair(entry.UserID, entry.Tariff)
	defer unlock()

	var existing Entry
	err := t.client.Get(ctx, t.pairKey(entry.UserID, entry.Tariff), &existing)
	switch {
	case err == nil && !supersede:
		return &existing, ErrAlreadyOpen
	case err == nil:
		// the superseded attempt must not stay reachable by its id
		if existing.ID != "" && existing.ID != entry.ID {
			_ = t.client.Del(ctx, t.idKey(existing.ID))
		}
	case !errors.Is(err, store.ErrKeyNotFound):
		return nil, err
	}

	entry.Status = types.InvoicePending
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := t.write(ctx, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (t *Tracker) write(ctx context.Context, entry *Entry) error {
	if err := t.client.Set(ctx, t.pairKey(entry.UserID, entry.Tariff), entry, t.ttl); err != nil {
		return err
	}
	if entry.ID != "" {
		if err := t.client.Set(ctx, t.idKey(entry.ID), entry, t.ttl); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, userID int64, tariff string) (*Entry, error) {
	var entry Entry
	err := t.client.Get(ctx, t.pairKey(userID, tariff), &entry)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (t *Tracker) GetByID(ctx context.Context, id string) (*Entry, error) {
	var entry Entry
	err := t.client.Get(ctx, t.idKey(id), &entry)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SetStatus records a status observation. Confirmed is terminal: once an
// entry is confirmed no later observation may downgrade it.
func (t *Tracker) SetStatus(ctx context.Context, userID int64, tariff string, status types.InvoiceStatus) (*Entry, error) {
	unlock := t.lockPair(userID, tariff)
	defer unlock()

	entry, err := t.Get(ctx, userID, tariff)
	if err != nil {
		return nil, err
	}
	if entry.Status == types.InvoiceConfirmed && status != types.InvoiceConfirmed {
		return entry, nil
	}
	if entry.Status == status {
		return entry, nil
	}
	entry.Status = status
	if err := t.write(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// MarkConfirmed flips the entry for (user, tariff) to confirmed and stamps
// the provider charge id on it. Missing entries are created on the fly: a
// platform confirmation event can arrive for an attempt this instance never
// saw (restart, another instance), and the payment is real either way. A
// charge id that is already marked processed returns ErrProcessed instead,
// so a redelivered confirmation cannot resurrect a claimed entry.
func (t *Tracker) MarkConfirmed(ctx context.Context, userID int64, tariff string, method types.PaymentMethod, paymentID string, amount float64, currency string) (*Entry, error) {
	unlock := t.lockPair(userID, tariff)
	defer unlock()

	if done, err := t.IsProcessed(ctx, paymentID); err != nil {
		return nil, err
	} else if done {
		return nil, ErrProcessed
	}

	entry, err := t.Get(ctx, userID, tariff)
	if errors.Is(err, ErrNotFound) {
		entry = &Entry{
			ID:        paymentID,
			UserID:    userID,
			Tariff:    tariff,
			Method:    method,
			Amount:    amount,
			Currency:  currency,
			CreatedAt: time.Now().UTC(),
		}
	} else if err != nil {
		return nil, err
	}

	entry.Status = types.InvoiceConfirmed
	if paymentID != "" {
		entry.PaymentID = paymentID
	}
	if err := t.write(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Claim atomically removes and returns the entry for (user, tariff). Exactly
// one caller wins; everyone else gets ErrNotFound. The processed markers are
// written before the pair lock is released, so MarkConfirmed for the same
// charge cannot recreate the entry in between. This is the idempotency
// boundary for payment confirmation: activation runs only for the winner,
// and a re-delivered confirmation event cannot double-activate.
func (t *Tracker) Claim(ctx context.Context, userID int64, tariff string) (*Entry, error) {
	unlock := t.lockPair(userID, tariff)
	defer unlock()

	var entry Entry
	err := t.client.GetDel(ctx, t.pairKey(userID, tariff), &entry)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.ID != "" {
		_ = t.client.Del(ctx, t.idKey(entry.ID))
	}
	if err := t.markProcessed(ctx, entry.Ref(), PairKey(userID, tariff)); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Restore puts a claimed entry back and clears its processed markers, used
// when activation failed after a successful claim so the user can retry the
// payment check.
func (t *Tracker) Restore(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("restore: nil entry")
	}
	unlock := t.lockPair(entry.UserID, entry.Tariff)
	defer unlock()
	if err := t.write(ctx, entry); err != nil {
		return err
	}
	return t.client.Del(ctx,
		t.processedKey(entry.Ref()),
		t.processedKey(PairKey(entry.UserID, entry.Tariff)))
}

func (t *Tracker) processedKey(id string) string {
	return t.client.Key("invoice", "done", id)
}

// markProcessed remembers that the payment with this reference has been
// fully handled, so redelivered confirmation events can be recognized after
// the live entry is claimed and gone.
func (t *Tracker) markProcessed(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := t.client.Set(ctx, t.processedKey(id), true, processedTTL); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) IsProcessed(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return t.client.Exists(ctx, t.processedKey(id))
}

// Retire removes the tracking entry without returning it.
func (t *Tracker) Retire(ctx context.Context, userID int64, tariff string) error {
	_, err := t.Claim(ctx, userID, tariff)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
