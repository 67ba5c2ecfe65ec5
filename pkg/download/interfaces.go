package download

import (
	"context"

	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/provider"
)

// Manager fetches a version's content into a scratch file next to its final
// location and verifies it against the published checksum.
type Manager interface {
	// Fetch downloads v through client into a temp file inside dir and returns
	// its path. The caller owns the file: it renames it into place or removes it.
	Fetch(ctx context.Context, client provider.Client, v *model.Version, dir string) (string, error)
}
