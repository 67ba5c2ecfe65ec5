package provider

import (
	"context"

	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
)

// Unavailable is a catalog variant that answers every call with ErrUnavailable.
// It stands in for catalogs that are disabled or not implemented yet.
type Unavailable struct {
	tag    model.ProviderTag
	reason string
}

// NewUnavailable creates the variant for tag; reason ends up in error messages.
func NewUnavailable(tag model.ProviderTag, reason string) *Unavailable {
	return &Unavailable{tag: tag, reason: reason}
}

func (u *Unavailable) Tag() model.ProviderTag { return u.tag }

func (u *Unavailable) err() error {
	return errors.Wrapf(errors.ErrUnavailable, "%s: %s", u.tag, u.reason)
}

func (u *Unavailable) Search(context.Context, string) ([]model.Identity, error) {
	return nil, u.err()
}

func (u *Unavailable) ListVersions(context.Context, model.Identity, platform.Target) ([]*model.Version, error) {
	return nil, u.err()
}

func (u *Unavailable) Download(context.Context, *model.Version) (*Payload, error) {
	return nil, u.err()
}

func (u *Unavailable) LookupHash(context.Context, string, string) (*model.Version, error) {
	return nil, u.err()
}
