package provider

import (
	"context"
	"time"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
)

// RetryPolicy bounds the backoff applied to transient failures.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns three attempts doubling from 500ms up to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retrying struct {
	inner  Client
	policy RetryPolicy
}

// WithRetry retries rate-limited, 5xx and timed-out calls on c with exponential
// backoff. Other failures, including a disabled provider's ErrUnavailable, are
// returned immediately.
func WithRetry(c Client, policy RetryPolicy) Client {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Sleep == nil {
		policy.Sleep = sleepCtx
	}
	return &retrying{inner: c, policy: policy}
}

func (r *retrying) Tag() model.ProviderTag { return r.inner.Tag() }

func (r *retrying) do(ctx context.Context, op string, fn func() error) error {
	delay := r.policy.BaseDelay
	var err error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		if err = fn(); err == nil || !errors.IsTransient(err) {
			return err
		}
		if attempt == r.policy.Attempts {
			break
		}
		logger.Warn("Transient provider failure, retrying", logger.Fields{
			"provider": r.inner.Tag(),
			"op":       op,
			"attempt":  attempt,
			"delay":    delay.String(),
			"error":    err,
		})
		if serr := r.policy.Sleep(ctx, delay); serr != nil {
			return serr
		}
		delay *= 2
		if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}
	return errors.Wrapf(err, "%s: giving up after %d attempts", op, r.policy.Attempts)
}

func (r *retrying) Search(ctx context.Context, query string) (out []model.Identity, err error) {
	err = r.do(ctx, "search", func() error {
		out, err = r.inner.Search(ctx, query)
		return err
	})
	return out, err
}

func (r *retrying) ListVersions(ctx context.Context, id model.Identity, target platform.Target) (out []*model.Version, err error) {
	err = r.do(ctx, "list versions", func() error {
		out, err = r.inner.ListVersions(ctx, id, target)
		return err
	})
	return out, err
}

func (r *retrying) Download(ctx context.Context, v *model.Version) (out *Payload, err error) {
	err = r.do(ctx, "download", func() error {
		out, err = r.inner.Download(ctx, v)
		return err
	})
	return out, err
}

func (r *retrying) LookupHash(ctx context.Context, algorithm, digest string) (out *model.Version, err error) {
	hl, ok := r.inner.(HashLookup)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnavailable, "%s: hash lookup not supported", r.inner.Tag())
	}
	err = r.do(ctx, "hash lookup", func() error {
		out, err = hl.LookupHash(ctx, algorithm, digest)
		return err
	})
	return out, err
}
