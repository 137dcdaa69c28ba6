package titler

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/chat-sessions/internal/kvstore"
	"github.com/xaenox/chat-sessions/internal/quota"
	"go.uber.org/zap"
)

type mockClient struct {
	response  string
	err       error
	noChoices bool
	calls     int
}

func (m *mockClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.calls++
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if m.noChoices {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.response}},
		},
	}, nil
}

func newTestTitler(client completionClient, q *quota.Manager) *Titler {
	return &Titler{
		client:      client,
		model:       openai.GPT3Dot5Turbo,
		maxTokens:   60,
		temperature: 0.7,
		quota:       q,
		logger:      zap.NewNop(),
	}
}

func TestSuggestTitle(t *testing.T) {
	q := quota.NewManager(kvstore.NewMemoryStore(), 5000, 100, 20, zap.NewNop())
	client := &mockClient{response: `"Planning a Trip"`}
	titler := newTestTitler(client, q)

	title := titler.SuggestTitle(context.Background(), "I want to plan a trip to Japan next spring")

	assert.Equal(t, "Planning a Trip", title)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 100, q.QuotaInfo().Used)
	assert.Equal(t, 1, q.DailyStats().Successful)
}

func TestSuggestTitleQuotaExhausted(t *testing.T) {
	q := quota.NewManager(kvstore.NewMemoryStore(), 100, 100, 20, zap.NewNop())
	require.NoError(t, q.RecordCall("earlier", true))

	client := &mockClient{response: "Unused"}
	titler := newTestTitler(client, q)

	title := titler.SuggestTitle(context.Background(), "Help me draft an email to my landlord")

	assert.Equal(t, "Help me draft an email to my landlord", title)
	assert.Zero(t, client.calls, "no API call is made once the budget is spent")
	assert.Equal(t, 100, q.QuotaInfo().Used)
}

func TestSuggestTitleAPIFailure(t *testing.T) {
	q := quota.NewManager(kvstore.NewMemoryStore(), 5000, 100, 20, zap.NewNop())
	client := &mockClient{err: errors.New("rate limited")}
	titler := newTestTitler(client, q)

	title := titler.SuggestTitle(context.Background(), "What is the capital of Mongolia?")

	assert.Equal(t, "What is the capital of Mongolia?", title)
	// Failed attempts still count against the budget
	assert.Equal(t, 100, q.QuotaInfo().Used)
	assert.Equal(t, 1, q.DailyStats().Failed)
}

func TestSuggestTitleEmptyResponse(t *testing.T) {
	q := quota.NewManager(kvstore.NewMemoryStore(), 5000, 100, 20, zap.NewNop())
	client := &mockClient{noChoices: true}
	titler := newTestTitler(client, q)

	// A well-formed response with no choices must fall back, not panic
	title := titler.SuggestTitle(context.Background(), "Summarize this article for me")

	assert.Equal(t, "Summarize this article for me", title)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 100, q.QuotaInfo().Used)
}

func TestFallbackTitle(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "short message", message: "Hello there", want: "Hello there"},
		{name: "first line only", message: "Trip ideas\nand some other details", want: "Trip ideas"},
		{name: "empty message", message: "   ", want: "New Chat"},
		{
			name:    "long message truncated",
			message: "This is a very long opening message that goes on and on well past any reasonable title length",
			want:    "This is a very long opening message that...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fallbackTitle(tt.message))
		})
	}
}
