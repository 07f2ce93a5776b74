package middleware

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hmmrfll/owl-ai-backend/internal/contextkeys"
	"github.com/hmmrfll/owl-ai-backend/types"
)

type Middlewares struct {
	users types.UserStore
}

func NewMessageAnalyzer(users types.UserStore) *Middlewares {
	return &Middlewares{users: users}
}

// EnsureUserMiddleware upserts the Telegram user on every interaction so the
// rest of the pipeline can rely on the row existing.
func (m *Middlewares) EnsureUserMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var (
			from   *models.User
			chatID int64
		)

		switch {
		case update.Message != nil && update.Message.From != nil:
			from = update.Message.From
			chatID = update.Message.Chat.ID
		case update.CallbackQuery != nil:
			from = &update.CallbackQuery.From
			chatID = getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
		case update.PreCheckoutQuery != nil:
			from = update.PreCheckoutQuery.From
		default:
			next(ctx, b, update)
			return
		}

		if from == nil || from.ID == 0 {
			next(ctx, b, update)
			return
		}

		upsertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.users.UpsertUser(upsertCtx, types.User{
			UserID:       from.ID,
			ChatID:       chatID,
			Username:     from.Username,
			FirstName:    from.FirstName,
			LastName:     from.LastName,
			LanguageCode: from.LanguageCode,
		})
		cancel()
		if err != nil {
			// the pipeline still works without the row, just record it
			log.Printf("middleware: upsert user %d: %v", from.ID, err)
		}

		next(ctx, b, update)
	}
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}

// AnalyzeMessageMiddleware classifies the update and stashes the result in
// the context so MainHandler can dispatch on it.
func (ma *Middlewares) AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.CallbackQuery != nil && update.CallbackQuery.Data != "" {
			newCtx := contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
			newCtx = contextkeys.WithCallbackData(newCtx, update.CallbackQuery.Data)
			next(newCtx, b, update)
			return
		}

		if update.PreCheckoutQuery != nil {
			next(contextkeys.WithMessageType(ctx, contextkeys.MessageTypePreCheckout), b, update)
			return
		}

		if update.Message != nil && update.Message.SuccessfulPayment != nil {
			next(contextkeys.WithMessageType(ctx, contextkeys.MessageTypePayment), b, update)
			return
		}

		if update.Message != nil && update.Message.Text != "" && strings.HasPrefix(update.Message.Text, "/") {
			next(contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand), b, update)
			return
		}

		next(ma.analyzeMessage(ctx, update), b, update)
	}
}

func (ma *Middlewares) analyzeMessage(ctx context.Context, update *models.Update) context.Context {
	if update.Message == nil {
		return ctx
	}
	msg := update.Message

	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for i := 1; i < len(msg.Photo); i++ {
			if msg.Photo[i].FileSize > best.FileSize {
				best = msg.Photo[i]
			}
		}
		ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypePhoto)
		return contextkeys.WithFileInfo(ctx, &contextkeys.FileInfo{
			FileType: contextkeys.MessageTypePhoto,
			FileID:   best.FileID,
			FileSize: int64(best.FileSize),
			Width:    best.Width,
			Height:   best.Height,
			FileName: "photo.jpg",
		})
	}

	if msg.Document != nil {
		ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeDocument)
		return contextkeys.WithFileInfo(ctx, &contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeDocument,
			FileID:   msg.Document.FileID,
			FileSize: int64(msg.Document.FileSize),
			MimeType: msg.Document.MimeType,
			FileName: msg.Document.FileName,
		})
	}

	if msg.Text != "" {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeText)
	}

	return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeUnknown)
}
