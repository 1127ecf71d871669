package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lwalthert/intuneapp/internal/logger"
)

// maxErrorBody bounds how much of a failed response is kept in APIError.
const maxErrorBody = 8 << 10

// HTTPDoer is an interface for making HTTP requests.
// This allows injecting mock HTTP clients for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client calls the management API rooted at a base URL such as
// https://graph.microsoft.com/beta.
type Client struct {
	baseURL   string
	doer      HTTPDoer
	token     string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client. A nil doer uses http.DefaultClient.
func New(baseURL string, doer HTTPDoer, opts ...Option) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// do sends a JSON request and decodes a JSON response into out when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}

		body = bytes.NewReader(payload)
	}

	target := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", method, path, err)
	}

	requestID := uuid.NewString()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("client-request-id", requestID)

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	logger.DebugKV(ctx, "graph request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &APIError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		//nolint:errcheck // Draining lets the connection be reused.
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}

	return nil
}

// collection is the OData envelope of list responses.
type collection[T any] struct {
	Value []T `json:"value"`
}
