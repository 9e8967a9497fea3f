package auth

import (
	"context"
	"net/http"

	"github.com/knowsee/knowsee/internal/secrets"
	"github.com/knowsee/knowsee/internal/store"
)

// StoreSource verifies the session cookie locally and reads the session from
// the shared database.
type StoreSource struct {
	key      []byte
	sessions store.SessionStore
}

func NewStoreSource(key []byte, sessions store.SessionStore) *StoreSource {
	return &StoreSource{key: key, sessions: sessions}
}

func (s *StoreSource) GetSession(ctx context.Context, headers http.Header) (*Session, error) {
	signed, ok := SessionToken(headers)
	if !ok {
		return nil, nil
	}
	token, ok := secrets.VerifySignedValue(s.key, signed)
	if !ok {
		return nil, nil
	}
	record, err := s.sessions.GetSession(ctx, token)
	if err != nil || record == nil {
		return nil, err
	}
	return &Session{User: User{
		ID:            record.User.ID,
		Email:         record.User.Email,
		Name:          record.User.Name,
		EmailVerified: record.User.EmailVerified,
	}}, nil
}
