package handlers

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hmmrfll/owl-ai-backend/internal/contextkeys"
	"github.com/hmmrfll/owl-ai-backend/internal/invoice"
	"github.com/hmmrfll/owl-ai-backend/internal/ledger"
	"github.com/hmmrfll/owl-ai-backend/internal/messages"
	"github.com/hmmrfll/owl-ai-backend/internal/payment"
	"github.com/hmmrfll/owl-ai-backend/types"
)

// Analyzer is the AI side of the bot: everything the user actually pays for.
type Analyzer interface {
	AnalyzePhoto(ctx context.Context, imageURL, caption string) (string, error)
	AnalyzeDocument(ctx context.Context, filename, content string) (string, error)
	Answer(ctx context.Context, question string) (string, error)
}

type Handlers struct {
	users    types.UserStore
	subs     types.SubscriptionStore
	ledger   *ledger.Ledger
	tracker  *invoice.Tracker
	payments *payment.Registry
	crypto   *payment.CryptoBackend
	analyzer Analyzer
}

func NewHandlers(
	users types.UserStore,
	subs types.SubscriptionStore,
	l *ledger.Ledger,
	tracker *invoice.Tracker,
	payments *payment.Registry,
	crypto *payment.CryptoBackend,
	analyzer Analyzer,
) *Handlers {
	return &Handlers{
		users:    users,
		subs:     subs,
		ledger:   l,
		tracker:  tracker,
		payments: payments,
		crypto:   crypto,
		analyzer: analyzer,
	}
}

func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := bh.getChatIDFromUpdate(update)
	messageType, _ := contextkeys.GetMessageType(ctx)

	switch messageType {
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, b, update)
	case contextkeys.MessageTypePhoto:
		bh.HandlePhoto(ctx, b, update)
	case contextkeys.MessageTypeDocument:
		bh.HandleDocument(ctx, b, update)
	case contextkeys.MessageTypeText:
		bh.HandleText(ctx, b, update)
	case contextkeys.MessageTypeClickButton:
		bh.HandleClickButton(ctx, b, update)
	case contextkeys.MessageTypePreCheckout:
		bh.HandlePreCheckout(ctx, b, update)
	case contextkeys.MessageTypePayment:
		bh.HandleSuccessfulPayment(ctx, b, update)
	default:
		if chatID != 0 {
			bh.send(ctx, b, chatID, messages.ErrorUnsupportedMessageType(), nil)
		}
	}
}

func (bh *Handlers) getChatIDFromUpdate(update *models.Update) int64 {
	if update == nil {
		return 0
	}
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil {
		return getChatIDFromMaybeInaccessibleMessage(update.CallbackQuery.Message)
	}
	return 0
}

func (bh *Handlers) getUserIDFromUpdate(update *models.Update) int64 {
	if update == nil {
		return 0
	}
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.ID
	}
	if update.PreCheckoutQuery != nil && update.PreCheckoutQuery.From != nil {
		return update.PreCheckoutQuery.From.ID
	}
	return 0
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

func (bh *Handlers) send(ctx context.Context, b *bot.Bot, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = *kb
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		log.Printf("Error sending message to chat %d: %v", chatID, err)
	}
}

// sendLong splits replies that exceed Telegram's message size limit.
func (bh *Handlers) sendLong(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	for _, chunk := range splitMessage(text, 4000) {
		bh.send(ctx, b, chatID, chunk, nil)
	}
}

// splitMessage cuts text into chunks of at most limit bytes, preferring a
// line break and never cutting inside a UTF-8 rune.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > limit {
			cut := strings.LastIndex(chunk[:limit], "\n")
			if cut < limit/2 {
				cut = limit
				for cut > 0 && !utf8.RuneStart(text[cut]) {
					cut--
				}
			}
			chunk = chunk[:cut]
		}
		chunks = append(chunks, chunk)
		text = strings.TrimPrefix(text[len(chunk):], "\n")
	}
	return chunks
}

// editOrSend updates the menu message in place, falling back to a fresh
// message. Telegram rejects edits that change nothing; that is not an error
// for us.
func (bh *Handlers) editOrSend(ctx context.Context, b *bot.Bot, chatID int64, messageID int, text string, kb *models.InlineKeyboardMarkup) {
	if messageID != 0 {
		params := &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      text,
			ParseMode: messages.ParseModeHTML,
		}
		if kb != nil {
			params.ReplyMarkup = *kb
		}
		_, err := b.EditMessageText(ctx, params)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return
		}
		log.Printf("Error editing message %d in chat %d: %v", messageID, chatID, err)
	}
	bh.send(ctx, b, chatID, text, kb)
}

func (bh *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callbackID, text string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		log.Printf("Error answering callback %s: %v", callbackID, err)
	}
}

func (bh *Handlers) answerCallbackAlert(ctx context.Context, b *bot.Bot, callbackID, text string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
	if err != nil {
		log.Printf("Error answering callback %s: %v", callbackID, err)
	}
}
