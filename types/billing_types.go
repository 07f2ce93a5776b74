package types

import "context"

type UserStore interface {
	UpsertUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID int64) (*User, error)
}

// SubscriptionStore owns subscription rows. Activate must leave exactly one
// active row per user regardless of interleaving with concurrent calls.
type SubscriptionStore interface {
	Activate(ctx context.Context, userID int64, tariffName string, details PaymentDetails) (*Subscription, error)
	GetActive(ctx context.Context, userID int64) (*Subscription, error)
	ExpireOverdue(ctx context.Context) ([]Subscription, error)
}

type UsageStore interface {
	RecordUsage(ctx context.Context, userID int64, kind ResourceKind, amount int) error
	MonthlyUsage(ctx context.Context, userID int64) (MonthlyUsage, error)
}
