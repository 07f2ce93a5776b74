// Package payment holds the backends for the three ways a subscription can
// be paid: an external crypto invoice, Telegram Stars and Telegram card
// checkout. Each backend opens an attempt in the invoice tracker and knows
// how to report the attempt's current status.
package payment

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"

	"github.com/hmmrfll/owl-ai-backend/internal/invoice"
	"github.com/hmmrfll/owl-ai-backend/types"
)

// ErrUnavailable marks a backend that is not configured for this deployment,
// e.g. no provider token for card checkout.
var ErrUnavailable = errors.New("payment method unavailable")

type Backend interface {
	Method() types.PaymentMethod

	// CreateInvoice opens a payment attempt for the tariff and returns the
	// tracked entry. Backends that pay inside Telegram also send the invoice
	// message through b.
	CreateInvoice(ctx context.Context, b *bot.Bot, chatID, userID int64, def *types.TariffDefinition) (*invoice.Entry, error)

	// CheckStatus reports the current state of the user's attempt for the
	// tariff. Provider trouble maps to InvoiceUnknown, not an error.
	CheckStatus(ctx context.Context, userID int64, tariff string) (types.InvoiceStatus, *invoice.Entry, error)
}

// Registry routes callback commands to the backend they belong to.
type Registry struct {
	backends map[types.PaymentMethod]Backend
}

func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[types.PaymentMethod]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Method()] = b
	}
	return r
}

func (r *Registry) ByMethod(m types.PaymentMethod) (Backend, bool) {
	b, ok := r.backends[m]
	return b, ok
}
