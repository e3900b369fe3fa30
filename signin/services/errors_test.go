package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignRejectedError(t *testing.T) {
	var err error = &SignRejectedError{Code: "40001", Message: "签到时间未到"}
	wrapped := fmt.Errorf("signing course 101: %w", err)

	assert.ErrorIs(t, wrapped, ErrSignRejected)
	assert.NotErrorIs(t, wrapped, ErrNetwork)
	var rejected *SignRejectedError
	assert.ErrorAs(t, wrapped, &rejected)
	assert.Equal(t, "40001", rejected.Code)
	assert.Contains(t, err.Error(), "40001")
}

func TestShouldInvalidateCredentials(t *testing.T) {
	assert.False(t, ShouldInvalidateCredentials(nil))
	assert.False(t, ShouldInvalidateCredentials(ErrNetwork))
	assert.False(t, ShouldInvalidateCredentials(&AuthError{Err: ErrMissingCredentials}))
	assert.True(t, ShouldInvalidateCredentials(&AuthError{Err: ErrTokenNotFound, InvalidateCredentials: true}))

	err := fmt.Errorf("starting run: %w", &AuthError{Err: ErrInvalidCredentials, InvalidateCredentials: true})
	assert.True(t, ShouldInvalidateCredentials(err))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "sign-in rejected (code 1): nope", Describe(&SignRejectedError{Code: "1", Message: "nope"}))
	assert.Equal(t, "this course has not started yet", Describe(ErrCourseNotStarted))
	assert.Equal(t,
		"network error, make sure you are on the campus network",
		Describe(errors.Join(ErrNetwork, errors.New("dial tcp: i/o timeout"))),
	)
	// the more specific kind wins over the transport wrapper
	assert.Equal(t,
		"login failed, check your username and password",
		Describe(&AuthError{Err: fmt.Errorf("%w: locked", ErrInvalidCredentials)}),
	)
	assert.Equal(t, "something else", Describe(errors.New("something else")))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", Mask(""))
	assert.Equal(t, "***", Mask("abcdef"))
	assert.Equal(t, "abc...xyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}
