package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const getSessionPath = "/api/auth/get-session"

// HTTPSource asks the auth service for the session, forwarding the caller's
// cookies.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPSource) GetSession(ctx context.Context, headers http.Header) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+getSessionPath, nil)
	if err != nil {
		return nil, err
	}
	if cookie := headers.Get("Cookie"); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("get session: status %d", resp.StatusCode)
	}
	var session *Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session == nil || session.User.ID == "" {
		return nil, nil
	}
	return session, nil
}
