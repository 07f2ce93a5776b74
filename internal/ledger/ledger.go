// Package ledger answers "may this user consume another unit of this
// resource this month" against the active subscription's tariff limits.
package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/hmmrfll/owl-ai-backend/internal/tariffs"
	"github.com/hmmrfll/owl-ai-backend/types"
)

type Ledger struct {
	subs  types.SubscriptionStore
	usage types.UsageStore
}

func New(subs types.SubscriptionStore, usage types.UsageStore) *Ledger {
	return &Ledger{subs: subs, usage: usage}
}

// Decision is what a limit check resolved to, kept around so handlers can
// phrase the refusal message without a second lookup.
type Decision struct {
	Allowed bool
	Tariff  *types.TariffDefinition
	Used    int
	Limit   int
}

// activeTariff resolves the user's tariff, falling back to the free plan
// when nothing is active.
func (l *Ledger) activeTariff(ctx context.Context, userID int64) (types.TariffDefinition, error) {
	sub, err := l.subs.GetActive(ctx, userID)
	if err != nil {
		return types.TariffDefinition{}, err
	}
	name := tariffs.FreeTariff
	if sub != nil {
		name = sub.TariffName
	}
	def, err := tariffs.Get(name)
	if err != nil {
		// subscription references a tariff the catalog no longer carries
		log.Printf("ledger: unknown tariff %q for user %d, falling back to free", name, userID)
		return tariffs.Get(tariffs.FreeTariff)
	}
	return def, nil
}

// CheckLimit reports whether the user may consume one more unit of kind.
// Storage failures resolve to allowed: refusing paying users service because
// the database hiccuped is the worse failure mode.
func (l *Ledger) CheckLimit(ctx context.Context, userID int64, kind types.ResourceKind) (Decision, error) {
	def, err := l.activeTariff(ctx, userID)
	if err != nil {
		log.Printf("ledger: tariff lookup failed for user %d: %v, allowing", userID, err)
		return Decision{Allowed: true}, nil
	}

	limit := def.Quota(kind)
	if limit == types.UnlimitedQuota {
		return Decision{Allowed: true, Tariff: &def, Limit: limit}, nil
	}

	usage, err := l.usage.MonthlyUsage(ctx, userID)
	if err != nil {
		log.Printf("ledger: usage lookup failed for user %d: %v, allowing", userID, err)
		return Decision{Allowed: true, Tariff: &def, Limit: limit}, nil
	}

	used := usage.For(kind)
	return Decision{
		Allowed: used < limit,
		Tariff:  &def,
		Used:    used,
		Limit:   limit,
	}, nil
}

// RecordUsage books one consumed unit of kind for today.
func (l *Ledger) RecordUsage(ctx context.Context, userID int64, kind types.ResourceKind) error {
	if err := l.usage.RecordUsage(ctx, userID, kind, 1); err != nil {
		return fmt.Errorf("record %s usage: %w", kind, err)
	}
	return nil
}

// ResourceState pairs a tariff's monthly limits with what the user has
// already consumed, for the status view.
type ResourceState struct {
	Tariff       *types.TariffDefinition
	Subscription *types.Subscription
	Usage        types.MonthlyUsage
}

func (s ResourceState) Remaining(kind types.ResourceKind) int {
	limit := s.Tariff.Quota(kind)
	if limit == types.UnlimitedQuota {
		return types.UnlimitedQuota
	}
	rest := limit - s.Usage.For(kind)
	if rest < 0 {
		rest = 0
	}
	return rest
}

// Resources aggregates subscription, tariff and current-month usage for the
// user. Unlike CheckLimit it propagates storage errors: a status view can be
// refused, a paid-for analysis cannot.
func (l *Ledger) Resources(ctx context.Context, userID int64) (*ResourceState, error) {
	sub, err := l.subs.GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("active subscription: %w", err)
	}
	name := tariffs.FreeTariff
	if sub != nil {
		name = sub.TariffName
	}
	def, err := tariffs.Get(name)
	if err != nil {
		def, _ = tariffs.Get(tariffs.FreeTariff)
	}
	usage, err := l.usage.MonthlyUsage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("monthly usage: %w", err)
	}
	return &ResourceState{Tariff: &def, Subscription: sub, Usage: usage}, nil
}
