package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

type ClientOptions struct {
	// must be bounded, a hanging sign-in request can miss the window
	Timeout   time.Duration
	UserAgent string
	// zero or less disables the limiter
	RequestsPerSecond float64
}

// NewClient returns a client with an empty cookie jar and the reporting, user agent
// and rate limiting round trippers installed.
func NewClient(opts ClientOptions, logger *log.Entry) *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	client := &http.Client{
		Jar:     jar,
		Timeout: opts.Timeout,
	}
	if opts.RequestsPerSecond > 0 {
		AddRateLimiter(client, rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1))
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	AddUserAgent(client, userAgent)
	if logger != nil {
		AddHttpReporting(client, logger)
	}
	return client
}

func baseTransport(client *http.Client) http.RoundTripper {
	if client.Transport == nil {
		return http.DefaultTransport
	}
	return client.Transport
}

type rateLimitedRoundTripper struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (rt *rateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return rt.transport.RoundTrip(req)
}

func AddRateLimiter(client *http.Client, limiter *rate.Limiter) {
	client.Transport = &rateLimitedRoundTripper{
		transport: baseTransport(client),
		limiter:   limiter,
	}
}

type userAgentRoundTripper struct {
	transport http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return rt.transport.RoundTrip(req)
	}
	// round trippers must not modify the callers request
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", rt.userAgent)
	return rt.transport.RoundTrip(req)
}

func AddUserAgent(client *http.Client, userAgent string) {
	client.Transport = &userAgentRoundTripper{
		transport: baseTransport(client),
		userAgent: userAgent,
	}
}

type loggerRoundTripper struct {
	logger    *log.Entry
	transport http.RoundTripper
	requestID int32
}

func (rt *loggerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if !rt.logger.Logger.IsLevelEnabled(LevelHttpReport) {
		return rt.transport.RoundTrip(req)
	}

	// redirects of the login handshake show up as separate requests
	currentID := atomic.AddInt32(&rt.requestID, 1)
	logger := rt.logger.WithFields(log.Fields{
		"method": req.Method,
		"host":   req.URL.Host,
		"path":   req.URL.Path,
		"id":     currentID,
	})

	logger.Log(LevelHttpReport, "outgoing request")
	resp, err := rt.transport.RoundTrip(req)
	if err != nil {
		logger.WithError(err).Log(LevelHttpReport, "request failed")
		return nil, err
	}
	logger.WithField("status", resp.Status).Log(LevelHttpReport, "response received")

	return resp, nil
}

func AddHttpReporting(client *http.Client, logger *log.Entry) {
	client.Transport = &loggerRoundTripper{
		logger:    logger,
		transport: baseTransport(client),
	}
}

// shorthand to check if a response is within 200-299
func IsOk(r *http.Response) bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// returns a ErrNetwork wrapped error of either the respErr if not nil or the
// status code if non "Ok", closing the body in the latter case
func RespOrStatusErr(r *http.Response, respErr error) error {
	if respErr != nil {
		return errors.Join(ErrNetwork, respErr)
	}
	if !IsOk(r) {
		io.Copy(io.Discard, r.Body)
		r.Body.Close()
		return fmt.Errorf(
			"%w got status code %d",
			ErrNetwork,
			r.StatusCode,
		)
	}
	return nil
}
