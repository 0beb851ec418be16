// Package client implements the pull engine: an authenticated HTTP client
// for Cortex platform APIs and the strategy-driven retrieval pipeline that
// turns heterogeneous endpoint shapes into canonical objects.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/gocortexio/gcgit/internal/config"
)

const (
	// DefaultTimeout bounds every individual HTTP request.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body (100 MiB).
	MaxResponseSize = 100 * 1024 * 1024

	// maxRetries is the attempt ceiling for transient transport failures.
	maxRetries = 3

	// UserAgent identifies gcgit to the platform.
	UserAgent = "gcgit/1.0"
)

// HTTPError represents a non-2xx response from the platform.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// Error returns the error message.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{StatusCode: statusCode, URL: url, Message: message}
}

// Client issues authenticated requests against one module of a Cortex
// tenant. It is safe for concurrent use; every pull call is self-contained.
type Client struct {
	httpClient *http.Client
	fqdn       string
	apiKey     string
	apiKeyID   string
	basePath   string
}

// New creates a client for the given module credentials and base API path.
func New(cfg config.ModuleConfig, basePath string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		fqdn:       cfg.FQDN,
		apiKey:     cfg.APIKey,
		apiKeyID:   cfg.APIKeyID,
		basePath:   basePath,
	}
}

// endpointURL joins the module base path and an endpoint. Endpoints may
// step outside the versioned prefix with "../" (the XQL library does), so
// the path is cleaned before use.
func (c *Client) endpointURL(endpoint string) string {
	return "https://" + c.fqdn + path.Clean(c.basePath+"/"+endpoint)
}

// postJSON sends an authenticated POST with a JSON body and returns the
// response body.
func (c *Client) postJSON(ctx context.Context, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, payload)
}

// get sends an authenticated GET and returns the response body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// do executes one request with retry on transient failures. Connection
// errors and 5xx responses are retried with exponential backoff; any other
// non-2xx status is a permanent failure.
func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	operation := func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("x-xdr-auth-id", c.apiKeyID)
		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", UserAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := NewHTTPError(resp.StatusCode, url, resp.Status)
			if resp.StatusCode >= 500 {
				return nil, httpErr
			}
			return nil, backoff.Permanent(httpErr)
		}

		limited := io.LimitReader(resp.Body, MaxResponseSize+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if len(body) > MaxResponseSize {
			return nil, backoff.Permanent(fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize))
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	return body, nil
}

// TestConnectivity performs a cheap authenticated call against the module
// base path, distinguishing authentication failures from network errors.
func (c *Client) TestConnectivity(ctx context.Context) error {
	url := "https://" + c.fqdn + c.basePath + "/"
	_, err := c.postJSON(ctx, url, map[string]any{"request_data": map[string]any{}})
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusUnauthorized {
				return fmt.Errorf("authentication failed - check API keys: %w", err)
			}
			// Any HTTP status means the endpoint is reachable.
			return nil
		}
		return fmt.Errorf("failed to connect to %s: %w", c.fqdn, err)
	}
	return nil
}
