package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hmmrfll/owl-ai-backend/internal/ai"
	"github.com/hmmrfll/owl-ai-backend/internal/config"
	"github.com/hmmrfll/owl-ai-backend/internal/cryptopay"
	"github.com/hmmrfll/owl-ai-backend/internal/handlers"
	"github.com/hmmrfll/owl-ai-backend/internal/invoice"
	"github.com/hmmrfll/owl-ai-backend/internal/ledger"
	"github.com/hmmrfll/owl-ai-backend/internal/middleware"
	"github.com/hmmrfll/owl-ai-backend/internal/payment"
	"github.com/hmmrfll/owl-ai-backend/internal/sweeper"
	"github.com/hmmrfll/owl-ai-backend/internal/tariffs"
	"github.com/hmmrfll/owl-ai-backend/store"
)

func main() {
	_ = config.LoadEnvFile("config.env")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	redisAddr := fmt.Sprintf("%s:%s",
		config.Env("REDIS_HOST", "localhost"),
		config.Env("REDIS_PORT", "6379"))
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := config.EnvInt("REDIS_DB", 0)

	rdb, err := store.NewRedisClient(redisAddr, redisPassword, redisDB, "owl_ai")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	pgStore, err := store.NewPostgresStore(ctx, os.Getenv("POSTGRES_DSN"))
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	if err := pgStore.SeedTariffs(ctx, tariffs.All()); err != nil {
		log.Fatalf("Failed to seed tariff limits: %v", err)
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		botToken = "YOUR_BOT_TOKEN_FROM_BOTFATHER"
		log.Println("Warning: Using default bot token. Set BOT_TOKEN environment variable.")
	}

	httpClient := &http.Client{
		Timeout: 10 * time.Minute,
	}
	pollTimeout := 50 * time.Second

	b, err := bot.New(
		botToken,
		bot.WithHTTPClient(pollTimeout, httpClient),
	)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	cryptoClient := cryptopay.NewClient(os.Getenv("CRYPTO_PAY_API_TOKEN"), os.Getenv("CRYPTO_PAY_API_URL"))
	if !cryptoClient.Configured() {
		log.Println("Warning: CRYPTO_PAY_API_TOKEN not set, crypto payments disabled.")
	} else if err := cryptoClient.GetMe(ctx); err != nil {
		log.Printf("Warning: crypto pay token check failed: %v", err)
	}

	aiClient := ai.NewClient()
	if !aiClient.Configured() {
		log.Println("Warning: OPENAI_API_KEY not set, analysis requests will fail.")
	}

	tracker := invoice.NewTracker(rdb, invoice.DefaultTTL)
	cryptoBackend := payment.NewCryptoBackend(cryptoClient, tracker)
	starsBackend := payment.NewStarsBackend(tracker)
	cardBackend := payment.NewCardBackend(tracker, os.Getenv("CARD_PROVIDER_TOKEN"))
	registry := payment.NewRegistry(cryptoBackend, starsBackend, cardBackend)

	quotaLedger := ledger.New(pgStore, pgStore)

	h := handlers.NewHandlers(pgStore, pgStore, quotaLedger, tracker, registry, cryptoBackend, aiClient)

	subSweeper := sweeper.NewSweeper(pgStore, pgStore, b)
	if err := subSweeper.Start(os.Getenv("SWEEP_SCHEDULE")); err != nil {
		log.Fatalf("Failed to start subscription sweeper: %v", err)
	}
	defer subSweeper.Stop()

	middlewares := middleware.NewMessageAnalyzer(pgStore)
	handlerChain := middlewares.EnsureUserMiddleware(
		middlewares.AnalyzeMessageMiddleware(
			h.MainHandler,
		),
	)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.PreCheckoutQuery != nil
	}, handlerChain)

	log.Println("Bot started. Press Ctrl+C to stop.")
	b.Start(ctx)
}
