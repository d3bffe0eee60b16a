package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

const maxBodyBytes = 1 << 20

// Client is the shared transport for every call to the voting server. It
// turns each response into a ports.Outcome exactly once.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    ports.SessionStore
	limiter    *rate.Limiter
	logger     logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit throttles outbound requests. A zero limit disables it.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

func NewClient(baseURL string, session ports.SessionStore, logger logrus.FieldLogger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		session:    session,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	bearer bool
	header http.Header
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs the request and classifies the response. On OutcomeOK the raw
// body is returned for the caller to decode.
func (c *Client) do(ctx context.Context, r request) ([]byte, ports.Outcome) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			return nil, ports.Outcome{Kind: ports.OutcomeAuthExpired, Message: "not authenticated", Err: err}
		}
		return nil, ports.Outcome{Kind: ports.OutcomeTransient, Reason: domain.ReasonNetwork, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportOutcome(err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"method": r.method, "path": r.path}).Debug("request failed")
		return nil, transportOutcome(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.logger.WithFields(logrus.Fields{
		"method":   r.method,
		"path":     r.path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("api call")
	if err != nil {
		return nil, transportOutcome(err)
	}

	outcome := classify(resp.StatusCode, body)
	if !outcome.OK() {
		return nil, outcome
	}
	return body, outcome
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.bearer {
		token, ok := c.session.Token()
		if !ok {
			return nil, domain.ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func classify(status int, body []byte) ports.Outcome {
	o := ports.Outcome{Status: status, Message: serverMessage(body)}
	switch {
	case status >= 200 && status < 300:
		o.Kind = ports.OutcomeOK
	case status == http.StatusUnauthorized:
		o.Kind = ports.OutcomeAuthExpired
	case status == http.StatusForbidden, status == http.StatusConflict:
		o.Kind = ports.OutcomeConflict
	case status == http.StatusNotFound:
		o.Kind = ports.OutcomeNotFound
		o.Reason = domain.ReasonNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		o.Kind = ports.OutcomeValidationFailed
		o.Reason = domain.ReasonRejected
	default:
		o.Kind = ports.OutcomeTransient
		o.Reason = domain.ReasonServer
		o.Err = fmt.Errorf("unexpected status %d", status)
	}
	return o
}

func serverMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Error != "" {
		return eb.Error
	}
	return eb.Message
}

func transportOutcome(err error) ports.Outcome {
	o := ports.Outcome{Kind: ports.OutcomeTransient, Reason: domain.ReasonNetwork, Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		o.Reason = domain.ReasonTimeout
	}
	return o
}

func malformed(status int, err error) ports.Outcome {
	return ports.Outcome{
		Kind:   ports.OutcomeTransient,
		Status: status,
		Reason: domain.ReasonMalformed,
		Err:    fmt.Errorf("malformed response: %w", err),
	}
}
