// Package sweeper deactivates overdue subscriptions on a schedule and tells
// the affected users they are back on the free plan.
package sweeper

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/robfig/cron/v3"

	"github.com/hmmrfll/owl-ai-backend/internal/messages"
	"github.com/hmmrfll/owl-ai-backend/internal/tariffs"
	"github.com/hmmrfll/owl-ai-backend/types"
)

// DefaultSchedule runs the sweep shortly after midnight, when the end_date
// comparison flips for most subscriptions.
const DefaultSchedule = "10 0 * * *"

type Sweeper struct {
	subs      types.SubscriptionStore
	users     types.UserStore
	botClient *bot.Bot
	cron      *cron.Cron

	mu      sync.Mutex
	running bool
}

func NewSweeper(subs types.SubscriptionStore, users types.UserStore, botClient *bot.Bot) *Sweeper {
	return &Sweeper{
		subs:      subs,
		users:     users,
		botClient: botClient,
		cron:      cron.New(),
	}
}

func (s *Sweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.running = true
	log.Printf("Subscription sweeper started with schedule %q", schedule)
	return nil
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	log.Printf("Subscription sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	expired, err := s.subs.ExpireOverdue(ctx)
	if err != nil {
		log.Printf("Error expiring overdue subscriptions: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}
	log.Printf("Expired %d overdue subscriptions", len(expired))

	for _, sub := range expired {
		s.notify(ctx, sub)
	}
}

// notify is best effort: a blocked bot or a missing chat id must not stop
// the rest of the batch.
func (s *Sweeper) notify(ctx context.Context, sub types.Subscription) {
	def, err := tariffs.Get(sub.TariffName)
	if err != nil {
		log.Printf("Expired subscription %d references unknown tariff %q", sub.ID, sub.TariffName)
		return
	}

	chatID := sub.UserID
	if user, err := s.users.GetUser(ctx, sub.UserID); err == nil && user != nil && user.ChatID != 0 {
		chatID = user.ChatID
	}

	_, err = s.botClient.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      messages.SubscriptionExpired(&def),
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		log.Printf("Error notifying user %d about expired subscription: %v", sub.UserID, err)
	}
}
