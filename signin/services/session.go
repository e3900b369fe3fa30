package services

import (
	"net/http"
	"net/url"
	"sync"
)

// Session is the cookie backed client produced by the authenticator. Downstream
// components borrow it to make requests but never replace its cookie jar.
type Session struct {
	mu            sync.RWMutex
	client        *http.Client
	authenticated bool
}

func NewSession(client *http.Client) *Session {
	return &Session{client: client}
}

func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

// only the authenticator calls this, once the login page came back clean
func (s *Session) MarkAuthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
}

func (s *Session) Authenticated() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) RequireAuthenticated() error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	if s.client == nil || s.client.Jar == nil {
		return nil
	}
	return s.client.Jar.Cookies(u)
}

// Discard drops the authenticated state. A discarded session can not be reused,
// a new run has to authenticate again.
func (s *Session) Discard() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
}
