package services

// services wrap every error that can come out of talking to the portal
//    so callers can branch on the kind with errors.Is / errors.As
//    transport errors are always wrapped with ErrNetwork

import (
	"errors"
	"fmt"
)

var (
	// transport failure or a non 2xx answer, starting the run over could work
	ErrNetwork = errors.New("network failure")

	// the portal answered with something we could not decode
	ErrUnexpectedResponse = errors.New("unexpected response")

	ErrNotAuthenticated     = errors.New("session is not authenticated")
	ErrMissingCredentials   = errors.New("username or password is empty")
	ErrTokenNotFound        = errors.New("execution token not found on the login page")
	ErrLoginPageMalformed   = errors.New("login page could not be parsed")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrMissingIdentityToken = errors.New("loginName missing from the post login redirect")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrNoActiveTerm         = errors.New("no active term")
	ErrNoCourses            = errors.New("no courses")
	ErrNoScheduleData       = errors.New("no schedule data")
	ErrCourseNotStarted     = errors.New("course has not started")
	ErrUnknownCourseStatus  = errors.New("unknown course status")
	ErrSignRejected         = errors.New("sign-in rejected")

	ErrNoActiveClassAndNoMakeupCandidates = errors.New("no class in progress and nothing to make up")
)

// SignRejectedError carries the upstream error code and message verbatim.
type SignRejectedError struct {
	Code    string
	Message string
}

func (e *SignRejectedError) Error() string {
	return fmt.Sprintf("%s: code %s: %s", ErrSignRejected, e.Code, e.Message)
}

func (e *SignRejectedError) Is(target error) bool {
	return target == ErrSignRejected
}

// AuthError is returned by the authenticator. InvalidateCredentials is set when
// the stored credentials should be cleared by whoever owns them.
type AuthError struct {
	Err                   error
	InvalidateCredentials bool
}

func (e *AuthError) Error() string {
	return e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func ShouldInvalidateCredentials(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.InvalidateCredentials
}

// Describe maps an error kind to the message shown to the student.
func Describe(err error) string {
	var rejected *SignRejectedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejected):
		return fmt.Sprintf("sign-in rejected (code %s): %s", rejected.Code, rejected.Message)
	case errors.Is(err, ErrMissingCredentials):
		return "username or password is empty"
	case errors.Is(err, ErrTokenNotFound):
		return "the login page changed and no login token was found"
	case errors.Is(err, ErrLoginPageMalformed):
		return "the login page could not be read"
	case errors.Is(err, ErrInvalidCredentials):
		return "login failed, check your username and password"
	case errors.Is(err, ErrNotAuthenticated):
		return "not logged in"
	case errors.Is(err, ErrMissingIdentityToken):
		return "could not find your identity after logging in"
	case errors.Is(err, ErrProfileNotFound):
		return "could not load your profile"
	case errors.Is(err, ErrNoActiveTerm):
		return "no current term was found"
	case errors.Is(err, ErrNoCourses):
		return "no courses were found for the current term"
	case errors.Is(err, ErrCourseNotStarted):
		return "this course has not started yet"
	case errors.Is(err, ErrUnknownCourseStatus):
		return "the portal reported an unknown course status"
	case errors.Is(err, ErrNoScheduleData):
		return "no schedule was found for this course"
	case errors.Is(err, ErrNoActiveClassAndNoMakeupCandidates):
		return "no class is in progress and there is nothing to make up"
	case errors.Is(err, ErrUnexpectedResponse):
		return "the portal sent a response that could not be understood"
	case errors.Is(err, ErrNetwork):
		return "network error, make sure you are on the campus network"
	default:
		return err.Error()
	}
}
