package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxErrorBody = 64 * 1024

// TokenSource returns the current bearer token, or "" when signed out.
type TokenSource func() string

// Error is returned for any non-2xx backend response.
type Error struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// IsStatus reports whether err is a backend *Error with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Options configures a Client.
type Options struct {
	BaseURL   string // e.g. http://localhost:5000
	APIPrefix string // e.g. /api
	Timeout   time.Duration
	Token     TokenSource
	// OnUnauthorized is invoked after any 401 response, before the error is returned.
	OnUnauthorized func()
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client talks to the content backend's REST API.
type Client struct {
	base           string
	httpClient     *http.Client
	token          TokenSource
	onUnauthorized func()
	logger         *zap.Logger
}

// New creates a backend client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:           strings.TrimRight(opts.BaseURL, "/") + "/" + strings.Trim(opts.APIPrefix, "/"),
		httpClient:     httpClient,
		token:          opts.Token,
		onUnauthorized: opts.OnUnauthorized,
		logger:         logger,
	}
}

// SetTokenSource replaces the token source. Used when the session is created after the client.
func (c *Client) SetTokenSource(ts TokenSource) { c.token = ts }

// SetUnauthorizedHook replaces the 401 hook.
func (c *Client) SetUnauthorizedHook(fn func()) { c.onUnauthorized = fn }

func (c *Client) endpoint(path string, query neturl.Values) string {
	u := strings.TrimRight(c.base, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, query neturl.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.String("request_id", req.Header.Get("X-Request-Id")),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Method: method, Path: path}
		apiErr.Message = readErrorMessage(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}
