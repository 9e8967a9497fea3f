// Package gate decides whether a request may proceed based on the caller's
// session and email verification.
package gate

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/knowsee/knowsee/internal/auth"
)

const (
	HealthPath    = "/ping"
	AuthAPIPrefix = "/api/auth"
	LoginPath     = "/login"
	RegisterPath  = "/register"
	VerifyPath    = "/verify-email"
	HomePath      = "/"
)

type Action string

const (
	Pass     Action = "pass"
	Redirect Action = "redirect"
)

type Decision struct {
	Action   Action
	Location string
}

// SessionState is what the gate knows about the caller.
type SessionState struct {
	SignedIn      bool
	EmailVerified bool
}

func StateOf(session *auth.Session) SessionState {
	if session == nil {
		return SessionState{}
	}
	return SessionState{SignedIn: true, EmailVerified: session.User.EmailVerified}
}

// under reports whether path is base or lies beneath it, matching whole
// segments so "/loginx" is not under "/login".
func under(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+"/")
}

func isAuthPage(path string) bool {
	return under(path, LoginPath) || under(path, RegisterPath)
}

// Exempt reports whether path passes the gate without a session: the health
// check and the auth API, which must not depend on the auth service itself.
func Exempt(path string) bool {
	return under(path, HealthPath) || under(path, AuthAPIPrefix)
}

// Decide applies the access rules in order; the first match wins.
func Decide(path string, state SessionState) Decision {
	pass := Decision{Action: Pass}
	switch {
	case Exempt(path):
		return pass
	case !state.SignedIn && isAuthPage(path):
		return pass
	case !state.SignedIn:
		return Decision{Action: Redirect, Location: LoginPath}
	case !state.EmailVerified && under(path, VerifyPath):
		return pass
	case !state.EmailVerified:
		return Decision{Action: Redirect, Location: VerifyPath}
	case isAuthPage(path) || under(path, VerifyPath):
		return Decision{Action: Redirect, Location: HomePath}
	default:
		return pass
	}
}

// Middleware loads the session on every gated request and enforces Decide.
// Exempt paths go straight through without a lookup. A failing session
// source is treated as no session. Passing requests carry the session in
// their context.
func Middleware(source auth.SessionSource, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			session, err := source.GetSession(r.Context(), r.Header)
			if err != nil {
				logger.Warn("session lookup failed", "path", r.URL.Path, "error", err)
				session = nil
			}
			decision := Decide(r.URL.Path, StateOf(session))
			if decision.Action == Redirect {
				http.Redirect(w, r, decision.Location, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}
