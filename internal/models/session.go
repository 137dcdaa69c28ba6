package models

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ChatMessage is a single message in a session history. Messages are
// append-only and their order is meaningful.
type ChatMessage struct {
	Content   string      `json:"content"`
	Role      MessageRole `json:"role"`
	Sentiment Sentiment   `json:"sentiment,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChatSession is one conversation thread owned by a single user.
type ChatSession struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
	Messages     []ChatMessage `json:"messages"`
}

// UserSessionsRecord is the per-user document held in the document store.
// CurrentSessionID always refers to a session in ActiveSessions, and session
// ids are unique across the active and archived sets.
type UserSessionsRecord struct {
	UserID           string        `json:"user_id"`
	ActiveSessions   []ChatSession `json:"active_sessions"`
	ArchivedSessions []ChatSession `json:"archived_sessions"`
	CurrentSessionID string        `json:"current_session_id"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// SessionSummary is a ChatSession with the message bodies stripped, used for
// the metadata read path.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	MessageCount int       `json:"message_count"`
}
