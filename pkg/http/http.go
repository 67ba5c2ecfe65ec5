package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
)

// DefaultUserAgent identifies the tool to catalog operators.
const DefaultUserAgent = "glorpus-work/modsync/1.0 (+https://github.com/glorpus-work/modsync)"

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 512

// HTTPClient performs catalog requests and maps failures onto the error taxonomy.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient creates a new HTTP client with the given timeout.
func NewHTTPClient(timeout time.Duration, userAgent string) *HTTPClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// GetJSON implements Client.
func (hc *HTTPClient) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	resp, err := hc.do(ctx, rawURL, header, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "decode response from %s: %v", rawURL, err)
	}
	return nil
}

// Open implements Client.
func (hc *HTTPClient) Open(ctx context.Context, rawURL string, header http.Header) (io.ReadCloser, error) {
	resp, err := hc.do(ctx, rawURL, header, "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (hc *HTTPClient) do(ctx context.Context, rawURL string, header http.Header, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", hc.userAgent)
	if accept != "" && req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", accept)
	}

	logger.Debug("HTTP request", logger.Fields{"url": rawURL})
	resp, err := hc.client.Do(req)
	if err != nil {
		// Timeouts keep their net.Error identity so retry logic can classify them.
		return nil, errors.Wrapf(err, "request %s", rawURL)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, StatusError(rawURL, resp.StatusCode, resp.Header, string(body))
}

// StatusError maps a non-200 HTTP status onto the error taxonomy.
func StatusError(rawURL string, status int, header http.Header, body string) error {
	detail := fmt.Sprintf("GET %s: HTTP %d", rawURL, status)
	if body != "" {
		detail += ": " + body
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return errors.Wrap(errors.ErrNotFound, detail)
	case status == http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrRateLimited, detail)
	case status == http.StatusForbidden && rateLimitExhausted(header):
		return errors.Wrap(errors.ErrRateLimited, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrap(errors.ErrUnavailable, "authentication failed: "+detail)
	case status >= http.StatusInternalServerError:
		return errors.Wrap(errors.ErrServerError, detail)
	default:
		return errors.Wrap(errors.ErrInvalidInput, detail)
	}
}

func rateLimitExhausted(header http.Header) bool {
	for _, key := range []string{"X-RateLimit-Remaining", "X-Ratelimit-Remaining"} {
		if v := header.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			return err == nil && n == 0
		}
	}
	return false
}
