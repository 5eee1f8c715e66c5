// Package client is a Go client for the docsync operator HTTP API.
//
// Usage:
//
//	c := client.New("http://localhost:8080")
//
//	j, err := c.Enqueue(ctx, enqueue.Request{
//	    Type:               "order-to-invoice",
//	    SourceDocumentName: "O-1",
//	})
//
//	// Poll until the job settles.
//	j, err = c.GetJob(ctx, j.ID)
//
// Errors returned for non-2xx responses are *APIError values. They match
// the docsync sentinel errors with errors.Is, so callers can test for
// docsync.ErrJobNotFound or docsync.ErrNotCancelable as they would against
// an in-process engine.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/xraph/docsync"
)

// Client talks to a remote docsync API.
type Client struct {
	baseURL string
	http    *http.Client
	header  http.Header
	logger  *slog.Logger
}

// New creates a client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		header:  make(http.Header),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docsync api: %d: %s", e.StatusCode, e.Message)
}

var sentinels = []error{
	docsync.ErrJobNotFound,
	docsync.ErrTypeNotFound,
	docsync.ErrJobAlreadyExists,
	docsync.ErrTypeAlreadyExists,
	docsync.ErrNotCancelable,
	docsync.ErrStatusConflict,
	docsync.ErrConfiguration,
}

// Is matches the sentinel the server reported.
func (e *APIError) Is(target error) bool {
	for _, s := range sentinels {
		if target == s {
			return strings.Contains(e.Message, s.Error())
		}
	}
	return false
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends a request and decodes a JSON response into out. A nil out
// discards the body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("docsync client: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("docsync client: build request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("docsync client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
		c.logger.Debug("docsync api error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return &APIError{StatusCode: resp.StatusCode, Message: eb.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("docsync client: decode response: %w", err)
		}
	}
	return nil
}

// Health calls /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
