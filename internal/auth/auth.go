// Package auth resolves the signed-in user for a request. The auth service
// owns sessions; this server only reads them.
package auth

import (
	"context"
	"net/http"
)

const (
	SessionCookie       = "better-auth.session_token"
	SecureSessionCookie = "__Secure-" + SessionCookie
)

type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

type Session struct {
	User User `json:"user"`
}

// SessionSource loads the session for a request. A nil session with a nil
// error means the request is anonymous.
type SessionSource interface {
	GetSession(ctx context.Context, headers http.Header) (*Session, error)
}

// SessionToken returns the raw (still signed) session cookie value.
func SessionToken(headers http.Header) (string, bool) {
	req := http.Request{Header: headers}
	for _, name := range []string{SecureSessionCookie, SessionCookie} {
		if cookie, err := req.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value, true
		}
	}
	return "", false
}

type contextKey struct{}

func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, session)
}

func FromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(contextKey{}).(*Session)
	return session
}
