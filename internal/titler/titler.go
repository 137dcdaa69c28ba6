package titler

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/chat-sessions/internal/quota"
	"go.uber.org/zap"
)

const maxFallbackTitleLen = 40

// completionClient is the slice of the OpenAI client the titler needs.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Titler generates a short session title from the opening message, charging
// every attempt against the daily API quota. When the quota is exhausted or
// the API misbehaves it falls back to a truncated form of the message itself.
type Titler struct {
	client      completionClient
	model       string
	maxTokens   int
	temperature float64
	quota       *quota.Manager
	logger      *zap.Logger
}

func New(apiKey, model string, maxTokens int, temperature float64, q *quota.Manager, logger *zap.Logger) *Titler {
	return &Titler{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		quota:       q,
		logger:      logger,
	}
}

func (t *Titler) SuggestTitle(ctx context.Context, firstMessage string) string {
	if !t.quota.CanMakeAPICall() {
		t.logger.Warn("API quota exhausted, using fallback title")
		return fallbackTitle(firstMessage)
	}

	prompt := fmt.Sprintf(`Suggest a short title (5 words or fewer) for a chat conversation that starts with the following message. Reply with the title only, no quotes.

Message: %s`, firstMessage)

	resp, err := t.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: t.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   t.maxTokens,
			Temperature: float32(t.temperature),
		},
	)

	if recordErr := t.quota.RecordCall(firstMessage, err == nil); recordErr != nil {
		t.logger.Error("Failed to record API call", zap.Error(recordErr))
	}

	if err != nil {
		t.logger.Error("Failed to get title from GPT", zap.Error(err))
		return fallbackTitle(firstMessage)
	}
	if len(resp.Choices) == 0 {
		t.logger.Error("GPT response contained no choices")
		return fallbackTitle(firstMessage)
	}

	title := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`)
	if title == "" {
		return fallbackTitle(firstMessage)
	}
	return title
}

// fallbackTitle trims the first line of the message to a displayable length.
func fallbackTitle(message string) string {
	line := strings.TrimSpace(message)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return "New Chat"
	}
	if utf8.RuneCountInString(line) <= maxFallbackTitleLen {
		return line
	}
	runes := []rune(line)
	return strings.TrimSpace(string(runes[:maxFallbackTitleLen])) + "..."
}
