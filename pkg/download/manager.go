package download

import (
	"context"
	"crypto/sha1" //nolint:gosec // catalogs still publish sha1 digests
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/fsutil"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/provider"
)

// ChecksumAttempts is how many times a download is tried before a checksum
// mismatch is reported: the original fetch plus one retry.
const ChecksumAttempts = 2

// ManagerImpl streams downloads to disk and verifies them.
type ManagerImpl struct {
	// OnAttempt is called before every download attempt. Used for metrics.
	OnAttempt func(tag model.ProviderTag)
}

// NewManager creates a new download manager.
func NewManager() *ManagerImpl {
	return &ManagerImpl{}
}

// Fetch implements Manager.
func (m *ManagerImpl) Fetch(ctx context.Context, client provider.Client, v *model.Version, dir string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= ChecksumAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path, err := m.fetchOnce(ctx, client, v, dir)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, errors.ErrChecksumMismatch) {
			return "", err
		}
		lastErr = err
		logger.Warn("Checksum mismatch, retrying download", logger.Fields{
			"version": v.ID,
			"file":    v.FileName,
			"attempt": attempt,
		})
	}
	return "", lastErr
}

func (m *ManagerImpl) fetchOnce(ctx context.Context, client provider.Client, v *model.Version, dir string) (string, error) {
	if m.OnAttempt != nil {
		m.OnAttempt(client.Tag())
	}
	payload, err := client.Download(ctx, v)
	if err != nil {
		return "", err
	}
	defer func() { _ = payload.Body.Close() }()

	want := payload.Checksum
	if want.IsZero() {
		want = v.Checksum
	}
	var h hash.Hash
	if !want.IsZero() {
		if h, err = NewHash(want.Algorithm); err != nil {
			return "", err
		}
	} else {
		logger.Warn("No checksum published, content is not verified", logger.Fields{"version": v.ID, "file": v.FileName})
	}

	tmpPath, err := writeBodyToTemp(payload.Body, dir, h)
	if err != nil {
		return "", err
	}
	if h != nil {
		got := hex.EncodeToString(h.Sum(nil))
		if got != normalizeHex(want.Value) {
			_ = os.Remove(tmpPath)
			return "", errors.Wrapf(errors.ErrChecksumMismatch, "%s: want %s:%s, got %s", v.FileName, want.Algorithm, normalizeHex(want.Value), got)
		}
	}
	return tmpPath, nil
}

func writeBodyToTemp(body io.Reader, dir string, h hash.Hash) (string, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return "", errors.Wrap(err, "could not create download dir")
	}
	tmp, err := os.CreateTemp(dir, fsutil.TempPattern)
	if err != nil {
		return "", errors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()
	fail := func(err error, msg string) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", errors.Wrap(err, msg)
	}

	var w io.Writer = tmp
	if h != nil {
		w = io.MultiWriter(tmp, h)
	}
	if _, err := io.Copy(w, body); err != nil {
		return fail(err, "could not write file")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "could not sync file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.Wrap(err, "could not close file")
	}
	if err := os.Chmod(tmpPath, fsutil.FileModeDefault); err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.Wrap(err, "could not set permissions")
	}
	return tmpPath, nil
}

// NewHash returns a hasher for a catalog digest algorithm name.
func NewHash(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "sha1":
		return sha1.New(), nil //nolint:gosec // catalog digest, not a security boundary
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported checksum algorithm %q", algorithm)
	}
}

// HashFile returns the lowercase hex digest of the file at path.
func HashFile(path, algorithm string) (string, error) {
	h, err := NewHash(algorithm)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func normalizeHex(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
