// Package metadata reads and writes the provenance record embedded in each
// artifact. The record lives in a reserved zip entry under META-INF, which
// the game's class loader and jar signature checks both ignore.
package metadata

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"os"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/fsutil"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/mholt/archives"
)

// RecordPath is the reserved entry holding the record.
const RecordPath = "META-INF/modsync.json"

// Store reads and writes embedded records.
type Store interface {
	// Read returns the record embedded in the artifact at path, or nil when
	// the artifact is untracked. An unreadable record is reported as
	// ErrMetadataCorrupt together with a nil record.
	Read(ctx context.Context, path string) (*model.Record, error)

	// Write embeds rec into the artifact at path. The file is rebuilt in a
	// sibling temp file and renamed over path in one step.
	Write(ctx context.Context, path string, rec *model.Record) error
}

// ZipStore is the Store for jar artifacts.
type ZipStore struct {
	format archives.Zip
}

// NewStore creates a Store that writes deflate-compressed jars.
func NewStore() *ZipStore {
	return &ZipStore{format: archives.Zip{
		Compression:          zip.Deflate,
		SelectiveCompression: true,
	}}
}

// Read implements Store.
func (s *ZipStore) Read(ctx context.Context, path string) (*model.Record, error) {
	fsys, err := archives.FileSystem(ctx, path, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMetadataCorrupt, "open %s: %v", path, err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	f, err := fsys.Open(RecordPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(errors.ErrMetadataCorrupt, "open record in %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	rec := &model.Record{}
	if err := json.NewDecoder(f).Decode(rec); err != nil {
		return nil, errors.Wrapf(errors.ErrMetadataCorrupt, "decode record in %s: %v", path, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, errors.Wrapf(errors.ErrMetadataCorrupt, "invalid record in %s: %v", path, err)
	}
	return rec, nil
}

// Write implements Store.
func (s *ZipStore) Write(ctx context.Context, path string, rec *model.Record) error {
	if err := rec.Validate(); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}

	st, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	entries, err := s.readEntries(ctx, path)
	if err != nil {
		return err
	}
	entries = append(entries, recordEntry(rec, data))

	logger.Debug("Writing embedded record", logger.Fields{"path": path, "version": rec.VersionID})
	return fsutil.WriteFileAtomic(path, st.Mode().Perm(), func(w io.Writer) error {
		if err := s.format.Archive(ctx, w, entries); err != nil {
			return errors.Wrapf(err, "rebuild %s", path)
		}
		return nil
	})
}

// readEntries loads every entry except the record into memory so the archive
// can be rebuilt while the source file stays untouched.
func (s *ZipStore) readEntries(ctx context.Context, path string) ([]archives.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var entries []archives.FileInfo
	err = s.format.Extract(ctx, f, func(_ context.Context, info archives.FileInfo) error {
		if info.NameInArchive == RecordPath {
			return nil
		}
		var data []byte
		if !info.IsDir() {
			rc, err := info.Open()
			if err != nil {
				return err
			}
			data, err = io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return err
			}
		}
		entries = append(entries, memEntry(info.FileInfo, info.NameInArchive, data))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s is not a readable jar: %v", path, err)
	}
	return entries, nil
}

func recordEntry(rec *model.Record, data []byte) archives.FileInfo {
	fh := &zip.FileHeader{
		Name:               RecordPath,
		Modified:           rec.InstalledAt,
		UncompressedSize64: uint64(len(data)),
	}
	fh.SetMode(fsutil.FileModeDefault)
	return memEntry(fh.FileInfo(), RecordPath, data)
}

func memEntry(info fs.FileInfo, name string, data []byte) archives.FileInfo {
	return archives.FileInfo{
		FileInfo:      info,
		NameInArchive: name,
		Open: func() (fs.File, error) {
			return &memFile{Reader: bytes.NewReader(data), info: info}, nil
		},
	}
}

type memFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *memFile) Close() error { return nil }
