// Package scanner takes a fresh snapshot of a mods directory. Nothing is
// cached between scans; every batch operation starts from what is on disk.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/metadata"
	"github.com/glorpus-work/modsync/pkg/model"
)

// Snapshot is the artifact set of one directory at one point in time.
type Snapshot struct {
	Dir       string
	Artifacts []*model.Artifact
	// Conflicts lists canonical names present both enabled and disabled.
	Conflicts map[string][]string
}

// Conflicted reports whether the canonical name exists in both states.
func (s *Snapshot) Conflicted(canonical string) bool {
	_, ok := s.Conflicts[canonical]
	return ok
}

// ByCanonical returns the artifacts that share a canonical name.
func (s *Snapshot) ByCanonical(canonical string) []*model.Artifact {
	var out []*model.Artifact
	for _, a := range s.Artifacts {
		if a.Canonical == canonical {
			out = append(out, a)
		}
	}
	return out
}

// Scanner enumerates artifacts and attaches their embedded records.
type Scanner struct {
	store metadata.Store
}

// New creates a Scanner reading records through store.
func New(store metadata.Store) *Scanner {
	return &Scanner{store: store}
}

// Scan lists the top-level artifacts of dir in name order. Subdirectories and
// files without an artifact extension are ignored.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read mods directory %s", dir)
	}

	snap := &Snapshot{Dir: dir, Conflicts: make(map[string][]string)}
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !entry.Type().IsRegular() || !model.IsArtifactName(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := model.NewArtifact(filepath.Join(dir, entry.Name()))
		rec, err := s.store.Read(ctx, a.Path)
		switch {
		case err == nil:
			a.Record = rec
		case errors.Is(err, errors.ErrMetadataCorrupt):
			logger.Warn("Ignoring unreadable embedded record", logger.Fields{"path": a.Path, "error": err})
			a.MetadataErr = err
		default:
			return nil, err
		}

		if other, ok := seen[a.Canonical]; ok {
			snap.Conflicts[a.Canonical] = []string{other, a.Path}
		}
		seen[a.Canonical] = a.Path
		snap.Artifacts = append(snap.Artifacts, a)
	}

	sort.Slice(snap.Artifacts, func(i, j int) bool {
		return snap.Artifacts[i].Path < snap.Artifacts[j].Path
	})
	logger.Debug("Scanned mods directory", logger.Fields{
		"dir":       dir,
		"artifacts": len(snap.Artifacts),
		"conflicts": len(snap.Conflicts),
	})
	return snap, nil
}
