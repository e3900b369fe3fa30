package iclass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
)

// Authenticate runs the SSO handshake once. The returned session owns a fresh
// cookie jar and is marked authenticated.
func (p *Portal) Authenticate(ctx context.Context, creds services.Credentials) (*services.Session, error) {
	logger := p.logger.WithFields(log.Fields{
		"job":      "authenticate",
		"username": creds.Username,
	})
	if creds.Empty() {
		logger.Error("Username or password is empty")
		return nil, &services.AuthError{Err: services.ErrMissingCredentials}
	}

	logger.Info("Logging in to the SSO gateway")
	session := services.NewSession(p.newClient())
	token, err := p.loginToken(ctx, logger, session)
	if err != nil {
		session.Discard()
		return nil, err
	}

	formData := url.Values{
		"username":  {creds.Username},
		"password":  {creds.Password},
		"submit":    {"登录"},
		"type":      {"username_password"},
		"execution": {token},
		"_eventId":  {"submit"},
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.endpoints.LoginURL,
		strings.NewReader(formData.Encode()),
	)
	if err != nil {
		session.Discard()
		logger.WithError(err).Error("Error creating login request")
		return nil, errors.Join(services.ErrUnexpectedResponse, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := session.Do(req)
	err = services.RespOrStatusErr(resp, err)
	if err != nil {
		session.Discard()
		logger.WithError(err).Error("Error submitting login form")
		return nil, err
	}
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		session.Discard()
		logger.WithError(err).Error("Error reading login response")
		return nil, errors.Join(services.ErrNetwork, err)
	}

	failed, messages, err := loginErrors(page)
	if err != nil {
		session.Discard()
		logger.WithError(err).Error("Error parsing login response")
		return nil, &services.AuthError{Err: err, InvalidateCredentials: true}
	}
	if failed {
		session.Discard()
		detail := strings.Join(messages, "; ")
		if detail == "" {
			detail = "unknown error"
		}
		logger.WithField("messages", detail).Error("Login rejected")
		return nil, &services.AuthError{
			Err:                   fmt.Errorf("%w: %s", services.ErrInvalidCredentials, detail),
			InvalidateCredentials: true,
		}
	}

	session.MarkAuthenticated()
	logger.Info("Logged in")
	return session, nil
}

func (p *Portal) loginToken(ctx context.Context, logger *log.Entry, session *services.Session) (string, error) {
	logger.Debug("Getting login token")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoints.LoginURL, nil)
	if err != nil {
		logger.WithError(err).Error("Error creating login page request")
		return "", errors.Join(services.ErrUnexpectedResponse, err)
	}
	resp, err := session.Do(req)
	err = services.RespOrStatusErr(resp, err)
	if err != nil {
		logger.WithError(err).Error("Error getting login page")
		return "", err
	}
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.WithError(err).Error("Error reading login page")
		return "", errors.Join(services.ErrNetwork, err)
	}

	token, err := p.extractor.ExecutionToken(page)
	if err != nil {
		// the page structure changed, the stored credentials are suspect too
		logger.WithError(err).Error("Error finding login token")
		return "", &services.AuthError{Err: err, InvalidateCredentials: true}
	}
	logger.WithField("token", services.Mask(token)).Debug("Got login token")
	return token, nil
}
