package iclass

import (
	"context"
	"net/url"
	"strconv"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
)

type signResponse struct {
	Status  looseString `json:"STATUS"`
	ErrCode looseString `json:"ERRCODE"`
	ErrMsg  looseString `json:"ERRMSG"`
}

// SubmitSign posts a single sign-in for the schedule entry. A rejection comes
// back as a *services.SignRejectedError next to the raw result.
func (p *Portal) SubmitSign(
	ctx context.Context,
	session *services.Session,
	profileID string,
	scheduleID string,
	timestamp int64,
) (services.SignResult, error) {
	var result services.SignResult
	logger := p.logger.WithFields(log.Fields{"job": "sign", "schedule": scheduleID})
	if err := session.RequireAuthenticated(); err != nil {
		return result, err
	}

	logger.Info("Signing in")
	query := url.Values{
		"courseSchedId": {scheduleID},
		"timestamp":     {strconv.FormatInt(timestamp, 10)},
	}
	form := url.Values{
		"id": {profileID},
	}
	var body signResponse
	if err := p.postJSON(ctx, session, logger, joinURL(p.endpoints.SignURL, "app/course/stu_scan_sign.action", query), form, &body); err != nil {
		return result, err
	}

	result = services.SignResult{
		StatusCode:   body.Status.String(),
		ErrorCode:    body.ErrCode.String(),
		ErrorMessage: body.ErrMsg.String(),
	}
	if !result.Signed() {
		logger.WithFields(log.Fields{
			"code":    result.ErrorCode,
			"message": result.ErrorMessage,
		}).Error("Sign-in rejected")
		return result, &services.SignRejectedError{Code: result.ErrorCode, Message: result.ErrorMessage}
	}
	logger.Info("Signed in")
	return result, nil
}
