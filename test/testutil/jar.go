package testutil

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// JarBytes builds an in-memory jar holding a single marker class, so every
// name yields distinct content.
func JarBytes(t testing.TB, marker string) []byte {
	t.Helper()
	return ZipBytes(t, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n",
		"marker.txt":           marker,
	})
}

// ZipBytes builds an in-memory zip with the given entries.
func ZipBytes(t testing.TB, entries map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteJar writes a jar with the given marker into dir and returns its path.
func WriteJar(t testing.TB, dir, name, marker string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, JarBytes(t, marker), 0o644); err != nil {
		t.Fatalf("write jar %s: %v", path, err)
	}
	return path
}

// ReadMarker returns the marker written by JarBytes, or "" when absent.
func ReadMarker(t testing.TB, path string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open jar %s: %v", path, err)
	}
	defer zr.Close()
	f, err := zr.Open("marker.txt")
	if err != nil {
		return ""
	}
	defer f.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		t.Fatalf("read marker in %s: %v", path, err)
	}
	return buf.String()
}

// ListDir returns the sorted names in dir.
func ListDir(t testing.TB, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
