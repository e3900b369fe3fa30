package iclass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
)

const (
	NetworkDirect = "direct"
	NetworkVPN    = "vpn"

	defaultTimeout = 15 * time.Second
)

// Endpoints are the four roots the portal is spread over.
type Endpoints struct {
	// SSO login page including the service parameter
	LoginURL string
	// landing page that redirects to a url carrying loginName
	BaseURL string
	// root of the app/... json api
	APIURL string
	// root of the sign-in api, served from a different port
	SignURL string
}

func DirectEndpoints() Endpoints {
	base := "https://iclass.buaa.edu.cn:8346/"
	return Endpoints{
		LoginURL: "https://sso.buaa.edu.cn/login?service=" + url.QueryEscape(base),
		BaseURL:  base,
		APIURL:   "https://iclass.buaa.edu.cn:8346",
		SignURL:  "http://iclass.buaa.edu.cn:8081",
	}
}

// off campus the login and landing page go through the WebVPN, the api does not
func VPNEndpoints() Endpoints {
	endpoints := DirectEndpoints()
	endpoints.LoginURL = "https://d.buaa.edu.cn/https/77726476706e69737468656265737421e3e44ed225256951300d8db9d6562d/login?service=https%3A%2F%2Ficlass.buaa.edu.cn%3A8346%2F"
	endpoints.BaseURL = "https://d.buaa.edu.cn/https-8346/77726476706e69737468656265737421f9f44d9d342326526b0988e29d51367ba018/"
	return endpoints
}

func EndpointsFor(network string) (Endpoints, error) {
	switch network {
	case NetworkDirect, "":
		return DirectEndpoints(), nil
	case NetworkVPN:
		return VPNEndpoints(), nil
	default:
		return Endpoints{}, fmt.Errorf("unknown network `%s` must be %s or %s", network, NetworkDirect, NetworkVPN)
	}
}

type Options struct {
	// called once per authentication so every login starts with an empty jar
	NewClient func() *http.Client
	// zone the portal writes its timestamps in
	Location  *time.Location
	Extractor TokenExtractor
}

// Portal talks to the SSO gateway and the iClass api.
type Portal struct {
	endpoints Endpoints
	newClient func() *http.Client
	location  *time.Location
	extractor TokenExtractor
	logger    *log.Entry
}

func New(endpoints Endpoints, logger *log.Entry, opts Options) *Portal {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("service", "iclass")
	p := &Portal{
		endpoints: endpoints,
		newClient: opts.NewClient,
		location:  opts.Location,
		extractor: opts.Extractor,
		logger:    logger,
	}
	if p.newClient == nil {
		p.newClient = func() *http.Client {
			return services.NewClient(services.ClientOptions{Timeout: defaultTimeout}, logger)
		}
	}
	if p.location == nil {
		p.location = time.Local
	}
	if p.extractor == nil {
		p.extractor = HTMLTokenExtractor{}
	}
	return p
}

func (p *Portal) Endpoints() Endpoints { return p.endpoints }

func (p *Portal) Location() *time.Location { return p.location }

func joinURL(root string, path string, query url.Values) string {
	u := strings.TrimRight(root, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (p *Portal) apiURL(path string, query url.Values) string {
	return joinURL(p.endpoints.APIURL, path, query)
}

// does the request and decodes the json body into v
func (p *Portal) doJSON(
	session *services.Session,
	req *http.Request,
	logger *log.Entry,
	v any,
) error {
	req.Header.Set("Accept", "application/json")
	resp, err := session.Do(req)
	err = services.RespOrStatusErr(resp, err)
	if err != nil {
		logger.WithError(err).Error("Error doing request")
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.WithError(err).Error("Error reading body")
		return errors.Join(services.ErrNetwork, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		logger.WithError(err).Error("Error decoding body")
		return errors.Join(services.ErrUnexpectedResponse, err)
	}
	return nil
}

func (p *Portal) getJSON(
	ctx context.Context,
	session *services.Session,
	logger *log.Entry,
	u string,
	v any,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		logger.WithError(err).Error("Error creating request")
		return errors.Join(services.ErrUnexpectedResponse, err)
	}
	return p.doJSON(session, req, logger, v)
}

func (p *Portal) postJSON(
	ctx context.Context,
	session *services.Session,
	logger *log.Entry,
	u string,
	form url.Values,
	v any,
) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		logger.WithError(err).Error("Error creating request")
		return errors.Join(services.ErrUnexpectedResponse, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return p.doJSON(session, req, logger, v)
}

func (p *Portal) parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(services.TimeLayout, value, p.location)
	if err != nil {
		return t, fmt.Errorf("%w time `%s` is not in the expected layout: %w", services.ErrUnexpectedResponse, value, err)
	}
	return t, nil
}
