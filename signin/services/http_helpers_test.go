package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewClient(t *testing.T) {
	var userAgents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents = append(userAgents, r.UserAgent())
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.TraceLevel)
	client := NewClient(ClientOptions{Timeout: time.Second, UserAgent: "autosign-test"}, log.NewEntry(logger))
	assert.Equal(t, time.Second, client.Timeout)

	resp, err := client.Get(server.URL)
	require.NoError(t, RespOrStatusErr(resp, err))
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")
	resp, err = client.Do(req)
	require.NoError(t, RespOrStatusErr(resp, err))
	resp.Body.Close()

	assert.Equal(t, []string{"autosign-test", "custom"}, userAgents)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	session := NewSession(client)
	require.Len(t, session.Cookies(u), 1)
	assert.Equal(t, "JSESSIONID", session.Cookies(u)[0].Name)

	// one line out and one line back per request
	assert.Len(t, hook.AllEntries(), 4)
	assert.Equal(t, LevelHttpReport, hook.LastEntry().Level)
}

func TestRespOrStatusErr(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	err = RespOrStatusErr(resp, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "502")

	err = RespOrStatusErr(nil, errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestRateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := &http.Client{}
	// the one token is taken by the first request, the second has to wait past the deadline
	AddRateLimiter(client, rate.NewLimiter(rate.Every(time.Hour), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.Error(t, err)
}

func TestSession(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.Authenticated())
	assert.ErrorIs(t, nilSession.RequireAuthenticated(), ErrNotAuthenticated)
	nilSession.Discard()

	session := NewSession(&http.Client{})
	assert.ErrorIs(t, session.RequireAuthenticated(), ErrNotAuthenticated)
	session.MarkAuthenticated()
	assert.NoError(t, session.RequireAuthenticated())
	session.Discard()
	assert.False(t, session.Authenticated())
}
