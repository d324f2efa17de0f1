// Package api holds the HTTP plumbing shared by the backend adapters of the
// checkout core: a configured resty client, the response envelope used by the
// payment and card endpoints, and the RequestError returned for any non-2xx or
// error-carrying response.
//
// Domain packages (challenge, intent, instruments) own their request and
// response shapes; this package only knows how to move JSON over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HeaderIdempotencyKey carries the per-attempt key on payment calls.
const HeaderIdempotencyKey = "Idempotency-Key"

// DefaultTimeout is applied when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNilClient is returned when a helper is called with a nil *Client.
	ErrNilClient = errors.New("api: nil client")

	// ErrEmptyBaseURL is returned by New when no base URL is configured.
	ErrEmptyBaseURL = errors.New("api: empty base url")
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	AuthToken string
	UserAgent string
}

// Client is a thin wrapper around a resty client bound to the platform backend.
type Client struct {
	rc *resty.Client
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrEmptyBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.AuthToken != "" {
		rc.SetAuthToken(cfg.AuthToken)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{rc: rc}, nil
}

// NewFromResty wraps an already configured resty client.
func NewFromResty(rc *resty.Client) *Client { return &Client{rc: rc} }

// Resty exposes the underlying client for adapters that need raw access
// (e.g. endpoints that do not use the envelope).
func (c *Client) Resty() *resty.Client { return c.rc }

// Authenticated reports whether the client carries a user token.
func (c *Client) Authenticated() bool {
	return c != nil && c.rc != nil && c.rc.Token != ""
}

// Envelope is the {data, error} wrapper returned by payment and card endpoints.
type Envelope[T any] struct {
	Data  *T         `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the error payload of an Envelope.
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Call posts body to path and decodes the enveloped response into T.
//
// It returns *RequestError when the transport succeeds but the backend
// answers with a non-2xx status or an error payload. A 2xx response without
// data yields a zero T and no error; callers decide whether that is usable.
func Call[T any](ctx context.Context, c *Client, path string, body any, headers map[string]string) (T, error) {
	var zero T
	if c == nil || c.rc == nil {
		return zero, ErrNilClient
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		Post(path)
	if err != nil {
		return zero, err
	}
	if resp.IsError() {
		return zero, newRequestError(path, resp.StatusCode(), resp.Body())
	}

	var env Envelope[T]
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return zero, &RequestError{Path: path, StatusCode: resp.StatusCode(), Message: "malformed response body", Err: err}
		}
	}
	if env.Error != nil {
		return zero, &RequestError{Path: path, StatusCode: resp.StatusCode(), Code: env.Error.Code, Message: env.Error.Message}
	}
	if env.Data == nil {
		return zero, nil
	}
	return *env.Data, nil
}

// Get fetches path and decodes the enveloped response into T.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var zero T
	if c == nil || c.rc == nil {
		return zero, ErrNilClient
	}

	resp, err := c.rc.R().SetContext(ctx).Get(path)
	if err != nil {
		return zero, err
	}
	if resp.IsError() {
		return zero, newRequestError(path, resp.StatusCode(), resp.Body())
	}

	var env Envelope[T]
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return zero, &RequestError{Path: path, StatusCode: resp.StatusCode(), Message: "malformed response body", Err: err}
	}
	if env.Error != nil {
		return zero, &RequestError{Path: path, StatusCode: resp.StatusCode(), Code: env.Error.Code, Message: env.Error.Message}
	}
	if env.Data == nil {
		return zero, nil
	}
	return *env.Data, nil
}

func newRequestError(path string, status int, body []byte) *RequestError {
	re := &RequestError{Path: path, StatusCode: status}

	// Best effort: both {message} and {error:{message}} shapes are seen.
	var flat struct {
		Message string     `json:"message"`
		Error   *ErrorBody `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil {
		switch {
		case flat.Error != nil:
			re.Code = flat.Error.Code
			re.Message = flat.Error.Message
		default:
			re.Message = flat.Message
		}
	}
	return re
}
