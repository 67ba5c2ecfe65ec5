//go:generate mockgen -destination=./mocks/provider.go . Client,HashLookup

// Package provider defines the capability every remote catalog implements and
// the decorators shared by all of them.
package provider

import (
	"context"
	"io"

	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
)

// Client is implemented by every catalog variant.
type Client interface {
	// Tag names the catalog this client talks to.
	Tag() model.ProviderTag

	// Search returns candidate identities, most relevant first.
	// An empty result is reported as ErrNotFound.
	Search(ctx context.Context, query string) ([]model.Identity, error)

	// ListVersions returns the builds of id usable for target, most recent first.
	// An identity unknown upstream is reported as ErrNotFound.
	ListVersions(ctx context.Context, id model.Identity, target platform.Target) ([]*model.Version, error)

	// Download opens the build's content. The caller closes Payload.Body.
	Download(ctx context.Context, v *model.Version) (*Payload, error)
}

// HashLookup is implemented by catalogs that can identify a file from its digest.
type HashLookup interface {
	// LookupHash returns the version whose primary file has the given digest.
	LookupHash(ctx context.Context, algorithm, digest string) (*model.Version, error)
}

// Payload is an open download.
type Payload struct {
	Body     io.ReadCloser
	Checksum model.Checksum
	FileName string
}
