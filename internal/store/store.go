package store

import (
	"context"
	"encoding/json"
	"time"
)

type User struct {
	ID            string
	Name          string
	Email         string
	EmailVerified bool
}

// Session is a row of the auth service's session table joined with its user.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	User      User
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Message is a persisted chat message. Parts holds the JSON-encoded parts
// exactly as the client streamed them.
type Message struct {
	ID        string
	ChatID    string
	Role      string
	Parts     json.RawMessage
	CreatedAt time.Time
}

type SessionStore interface {
	// GetSession returns nil when the token is unknown or expired.
	GetSession(ctx context.Context, token string) (*Session, error)
}

type MessageStore interface {
	SaveMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
}

type Store interface {
	SessionStore
	MessageStore
}
