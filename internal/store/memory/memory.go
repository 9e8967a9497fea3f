package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/knowsee/knowsee/internal/store"
)

type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]store.User
	sessions map[string]store.Session
	messages map[string][]store.Message
}

func New() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		users:    map[string]store.User{},
		sessions: map[string]store.Session{},
		messages: map[string][]store.Message{},
	}
}

func (m *MemoryStore) PutUser(ctx context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStore) PutSession(ctx context.Context, session store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = session
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, token string) (*store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[token]
	if !ok || session.Expired(m.now()) {
		return nil, nil
	}
	user, ok := m.users[session.UserID]
	if !ok {
		return nil, nil
	}
	session.User = user
	return &session, nil
}

// SaveMessage inserts or replaces a message by ID.
func (m *MemoryStore) SaveMessage(ctx context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now().UTC()
	}
	msg.Parts = append([]byte(nil), msg.Parts...)
	byChat := m.messages[msg.ChatID]
	for i := range byChat {
		if byChat[i].ID == msg.ID {
			msg.CreatedAt = byChat[i].CreatedAt
			byChat[i] = msg
			return nil
		}
	}
	m.messages[msg.ChatID] = append(byChat, msg)
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, chatID string) ([]store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Message, len(m.messages[chatID]))
	copy(out, m.messages[chatID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
