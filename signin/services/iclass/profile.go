package iclass

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
)

type profileResponse struct {
	Result json.RawMessage `json:"result"`
}

type profileResult struct {
	ID       looseString `json:"id"`
	RealName string      `json:"realName"`
	UserUUID looseString `json:"userUUID"`
}

// ResolveProfile follows the landing page redirect to find the student's
// loginName and exchanges it for their profile.
func (p *Portal) ResolveProfile(ctx context.Context, session *services.Session) (services.Profile, error) {
	var profile services.Profile
	logger := p.logger.WithField("job", "resolveProfile")
	if err := session.RequireAuthenticated(); err != nil {
		return profile, err
	}

	logger.Info("Getting user information")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoints.BaseURL, nil)
	if err != nil {
		logger.WithError(err).Error("Error creating landing page request")
		return profile, errors.Join(services.ErrUnexpectedResponse, err)
	}
	resp, err := session.Do(req)
	err = services.RespOrStatusErr(resp, err)
	if err != nil {
		logger.WithError(err).Error("Error getting landing page")
		return profile, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// resp.Request is the last request of the redirect chain
	loginName := resp.Request.URL.Query().Get("loginName")
	if loginName == "" {
		logger.WithField("url", resp.Request.URL.Redacted()).Error("No loginName in the redirect url")
		return profile, services.ErrMissingIdentityToken
	}
	logger.WithField("loginName", services.Mask(loginName)).Debug("Got identity token")

	query := url.Values{
		"phone":            {loginName},
		"password":         {""},
		"verificationType": {"2"},
		"verificationUrl":  {""},
		"userLevel":        {"1"},
	}
	var body profileResponse
	if err := p.getJSON(ctx, session, logger, p.apiURL("app/user/login.action", query), &body); err != nil {
		return profile, err
	}
	if isEmptyJSON(body.Result) {
		logger.Error("Response has no user information")
		return profile, services.ErrProfileNotFound
	}
	var result profileResult
	if err := json.Unmarshal(body.Result, &result); err != nil {
		logger.WithError(err).Error("Error decoding user information")
		return profile, errors.Join(services.ErrUnexpectedResponse, err)
	}
	if result.ID == "" {
		logger.Error("User information has no id")
		return profile, services.ErrProfileNotFound
	}

	profile = services.Profile{
		ID:            result.ID.String(),
		DisplayName:   result.RealName,
		StudentNumber: result.UserUUID.String(),
	}
	logger.WithFields(log.Fields{
		"name":          profile.DisplayName,
		"studentNumber": profile.StudentNumber,
	}).Info("Got user information")
	return profile, nil
}
