package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hmmrfll/owl-ai-backend/internal/contextkeys"
	"github.com/hmmrfll/owl-ai-backend/internal/messages"
	"github.com/hmmrfll/owl-ai-backend/types"
)

// supportedDocumentExts is what the document pipeline accepts. Everything
// else is refused before a quota unit is spent.
var supportedDocumentExts = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
	".rtf":  true,
}

// textExtractableExts are read as plain text and fed to the model verbatim.
var textExtractableExts = map[string]bool{
	".txt": true,
	".rtf": true,
}

const maxDocumentTextBytes = 64 * 1024

func (bh *Handlers) HandlePhoto(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	userID := bh.getUserIDFromUpdate(update)

	fileInfo, ok := contextkeys.GetFileInfo(ctx)
	if !ok || fileInfo == nil {
		bh.send(ctx, b, chatID, messages.ErrorDefault(), nil)
		return
	}

	if !bh.allowResource(ctx, b, chatID, userID, types.ResourcePhoto) {
		return
	}

	bh.send(ctx, b, chatID, messages.Processing(), nil)

	fileURL, err := bh.fileURL(ctx, b, fileInfo.FileID)
	if err != nil {
		log.Printf("Error resolving photo file %s: %v", fileInfo.FileID, err)
		bh.send(ctx, b, chatID, messages.ErrorAnalysisFailed(), nil)
		return
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	answer, err := bh.analyzer.AnalyzePhoto(analyzeCtx, fileURL, update.Message.Caption)
	cancel()
	if err != nil {
		log.Printf("Error analyzing photo for user %d: %v", userID, err)
		bh.send(ctx, b, chatID, messages.ErrorAnalysisFailed(), nil)
		return
	}

	bh.sendLong(ctx, b, chatID, messages.AnalysisResult(answer))
	bh.bookUsage(ctx, b, chatID, userID, types.ResourcePhoto)
}

func (bh *Handlers) HandleDocument(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	userID := bh.getUserIDFromUpdate(update)

	fileInfo, ok := contextkeys.GetFileInfo(ctx)
	if !ok || fileInfo == nil {
		bh.send(ctx, b, chatID, messages.ErrorDefault(), nil)
		return
	}

	ext := strings.ToLower(filepath.Ext(fileInfo.FileName))
	if !supportedDocumentExts[ext] {
		bh.send(ctx, b, chatID, messages.ErrorUnsupportedDocument(), nil)
		return
	}

	if !bh.allowResource(ctx, b, chatID, userID, types.ResourceDocument) {
		return
	}

	bh.send(ctx, b, chatID, messages.Processing(), nil)

	content := update.Message.Caption
	if textExtractableExts[ext] {
		data, err := bh.downloadFile(ctx, b, fileInfo.FileID)
		if err != nil {
			log.Printf("Error downloading document %s: %v", fileInfo.FileID, err)
			bh.send(ctx, b, chatID, messages.ErrorAnalysisFailed(), nil)
			return
		}
		if len(data) > maxDocumentTextBytes {
			data = data[:maxDocumentTextBytes]
		}
		content = string(data)
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	answer, err := bh.analyzer.AnalyzeDocument(analyzeCtx, fileInfo.FileName, content)
	cancel()
	if err != nil {
		log.Printf("Error analyzing document for user %d: %v", userID, err)
		bh.send(ctx, b, chatID, messages.ErrorAnalysisFailed(), nil)
		return
	}

	bh.sendLong(ctx, b, chatID, messages.AnalysisResult(answer))
	bh.bookUsage(ctx, b, chatID, userID, types.ResourceDocument)
}

func (bh *Handlers) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	userID := bh.getUserIDFromUpdate(update)

	if !bh.allowResource(ctx, b, chatID, userID, types.ResourceAIRequest) {
		return
	}

	bh.send(ctx, b, chatID, messages.Processing(), nil)

	analyzeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	answer, err := bh.analyzer.Answer(analyzeCtx, update.Message.Text)
	cancel()
	if err != nil {
		log.Printf("Error answering question for user %d: %v", userID, err)
		bh.send(ctx, b, chatID, messages.ErrorAnalysisFailed(), nil)
		return
	}

	bh.sendLong(ctx, b, chatID, messages.AnalysisResult(answer))
	bh.bookUsage(ctx, b, chatID, userID, types.ResourceAIRequest)
}

// allowResource runs the quota check and refuses the request with the
// limit-reached message when the month's budget is spent.
func (bh *Handlers) allowResource(ctx context.Context, b *bot.Bot, chatID, userID int64, kind types.ResourceKind) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	decision, err := bh.ledger.CheckLimit(checkCtx, userID, kind)
	if err != nil {
		log.Printf("Error checking %s limit for user %d: %v", kind, userID, err)
		return true
	}
	if !decision.Allowed {
		bh.send(ctx, b, chatID, messages.LimitReached(kind, decision.Tariff), nil)
		return false
	}
	return true
}

// bookUsage records the consumed unit and warns when the month's budget is
// nearly gone.
func (bh *Handlers) bookUsage(ctx context.Context, b *bot.Bot, chatID, userID int64, kind types.ResourceKind) {
	recordCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := bh.ledger.RecordUsage(recordCtx, userID, kind); err != nil {
		log.Printf("Error recording %s usage for user %d: %v", kind, userID, err)
		return
	}

	decision, err := bh.ledger.CheckLimit(recordCtx, userID, kind)
	if err != nil || decision.Limit == types.UnlimitedQuota {
		return
	}
	rest := decision.Limit - decision.Used
	if rest > 0 && rest <= 3 {
		bh.send(ctx, b, chatID, messages.LimitAlmostReached(rest), nil)
	}
}

func (bh *Handlers) fileURL(ctx context.Context, b *bot.Bot, fileID string) (string, error) {
	fileInfo, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file info: %w", err)
	}
	return fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", b.Token(), fileInfo.FilePath), nil
}

func (bh *Handlers) downloadFile(ctx context.Context, b *bot.Bot, fileID string) ([]byte, error) {
	fileURL, err := bh.fileURL(ctx, b, fileID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20*1024*1024))
}
