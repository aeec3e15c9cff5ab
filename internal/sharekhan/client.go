// Package sharekhan talks to the Sharekhan REST API: the hosted login
// redirect, access-token exchange, and the historical data service.
package sharekhan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/manish3089/Token-Generator/internal/codec"
	"github.com/manish3089/Token-Generator/pkg/config"
	"github.com/sirupsen/logrus"
)

const (
	accessTokenPath = "/services/access/token"
	authLoginPath   = "/services/auth/login"
	authLogoutPath  = "/services/auth/logout"
	historicalPath  = "/services/historical"
	loginPagePath   = "/auth/login.html"

	statusSuccess = "success"
)

var (
	// ErrNoAuthorizationCode is returned when the login callback carries
	// neither request_token nor code.
	ErrNoAuthorizationCode = errors.New("No authorization code received from Sharekhan.")
	// ErrSequence is returned when a historical fetch is attempted without an
	// open session. No request is sent.
	ErrSequence = errors.New("sharekhan: login required before fetching historical data")
)

// TransportError reports a failed HTTP exchange. StatusCode is zero when no
// response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: API error %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
	default:
		return e.Op + ": request failed"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client handles Sharekhan REST API operations. A Client sends one request at
// a time; callers needing parallelism should use separate clients.
type Client struct {
	config     *config.SharekhanConfig
	codec      *codec.Codec
	httpClient *http.Client
	logger     *logrus.Entry
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Sharekhan client
func NewClient(cfg *config.SharekhanConfig, cdc *codec.Codec, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		config: cfg,
		codec:  cdc,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.WithField("component", "sharekhan"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

func (c *Client) createRequest(ctx context.Context, method, url string, payload interface{}, sess *Session) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.token)
	}

	return req, nil
}

// do sends req and returns the body of a 2xx response. Any other outcome is
// a *TransportError.
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// envelope is the status wrapper used by the auth and historical services
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &env, nil
}

func (e *envelope) failure(op string) error {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Errorf("%s: %s", op, msg)
}
