//go:generate mockgen -destination=mocks/http.go . Client
package http

import (
	"context"
	"io"
	"net/http"
)

// Client defines the HTTP operations provider clients are built on.
type Client interface {
	// GetJSON issues a GET and decodes a 200 response body into out.
	// Non-200 responses are mapped onto the error taxonomy.
	GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error

	// Open issues a GET and returns the response body for streaming.
	// The caller closes the body.
	Open(ctx context.Context, rawURL string, header http.Header) (io.ReadCloser, error)
}
