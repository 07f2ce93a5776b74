// Package ai wraps the OpenAI chat API for the three kinds of analysis the
// bot sells: photos, documents and free-form questions.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "Ты — юридический ассистент. Отвечай на русском языке, " +
	"понятно и по существу. Анализируй присланные документы и изображения с " +
	"точки зрения юридических рисков, обязанностей сторон и возможных действий. " +
	"Если вопрос выходит за рамки юридической тематики, вежливо сообщи об этом."

// defaultModel is used when OPENAI_MODEL is not set.
const defaultModel = "gpt-4o-mini"

var ErrNotConfigured = errors.New("openai: api key not configured")

type Client struct {
	api   *openai.Client
	model string
}

func NewClient() *Client {
	key := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}
	c := &Client{model: model}
	if key != "" {
		c.api = openai.NewClient(key)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.api != nil
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// AnalyzePhoto sends the image by URL together with an optional caption.
func (c *Client) AnalyzePhoto(ctx context.Context, imageURL, caption string) (string, error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}
	userText := "Проанализируй это изображение."
	if caption != "" {
		userText = caption
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userText},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("photo analysis: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("photo analysis: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// AnalyzeDocument feeds the extracted document text through the model.
func (c *Client) AnalyzeDocument(ctx context.Context, filename, content string) (string, error) {
	prompt := fmt.Sprintf("Проанализируй документ «%s»:\n\n%s", filename, content)
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

// Answer handles a plain text question.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: question},
	})
}
