//go:build integration

package main

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glorpus-work/modsync/internal/cli"
	"github.com/glorpus-work/modsync/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModrinth serves the subset of the Modrinth v2 API the client uses.
type fakeModrinth struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	projects map[string][2]string // id -> slug, title
	versions map[string][]map[string]any
	files    map[string][]byte
}

func newFakeModrinth(t *testing.T) *fakeModrinth {
	t.Helper()
	f := &fakeModrinth{
		t:        t,
		projects: make(map[string][2]string),
		versions: make(map[string][]map[string]any),
		files:    make(map[string][]byte),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/search", f.search)
	mux.HandleFunc("GET /v2/project/{id}/version", f.listVersions)
	mux.HandleFunc("GET /v2/version_file/{hash}", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	mux.HandleFunc("GET /files/{name}", f.file)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeModrinth) project(id, slug, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[id] = [2]string{slug, title}
}

// publish adds a fabric build for 1.21. Versions are listed newest first.
func (f *fakeModrinth) publish(projectID, versionID, number string, published time.Time, requires ...string) {
	content := testutil.JarBytes(f.t, versionID)
	sum := sha512.Sum512(content)
	slug := f.projects[projectID][0]
	name := slug + "-" + number + ".jar"

	deps := make([]map[string]any, 0, len(requires))
	for _, r := range requires {
		deps = append(deps, map[string]any{"project_id": r, "dependency_type": "required"})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = content
	f.versions[projectID] = append([]map[string]any{{
		"id":             versionID,
		"project_id":     projectID,
		"version_number": number,
		"game_versions":  []string{"1.21"},
		"loaders":        []string{"fabric"},
		"date_published": published.Format(time.RFC3339),
		"dependencies":   deps,
		"files": []map[string]any{{
			"url":      f.srv.URL + "/files/" + name,
			"filename": name,
			"primary":  true,
			"hashes":   map[string]string{"sha512": hex.EncodeToString(sum[:])},
		}},
	}}, f.versions[projectID]...)
}

func (f *fakeModrinth) search(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))
	f.mu.Lock()
	defer f.mu.Unlock()
	hits := []map[string]string{}
	for id, p := range f.projects {
		if strings.Contains(p[0], query) {
			hits = append(hits, map[string]string{"project_id": id, "slug": p[0], "title": p[1]})
		}
	}
	writeJSON(w, map[string]any{"hits": hits})
}

func (f *fakeModrinth) listVersions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vs, ok := f.versions[r.PathValue("id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, vs)
}

func (f *fakeModrinth) file(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.files[r.PathValue("name")]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeTempConfig points modrinth at the fake server and disables github so
// nothing leaves the machine.
func writeTempConfig(t *testing.T, root, url string) (cfgPath, modsDir, metricsFile string) {
	t.Helper()
	cfgPath = filepath.Join(root, "config.yaml")
	modsDir = filepath.Join(root, "mods")
	metricsFile = filepath.Join(root, "modsync.prom")
	content := `providers:
  - name: modrinth
    enabled: true
    url: ` + url + `
  - name: github
    enabled: false
settings:
  mods_dir: ` + modsDir + `
  game_version: "1.21"
  loader: fabric
  http_timeout: 5s
  retry_attempts: 1
  hooks_dir: ` + filepath.Join(root, "hooks") + `
  metrics_file: ` + metricsFile + `
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath, modsDir, metricsFile
}

// run executes one command and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cli.SetOutput(&out)
	defer cli.SetOutput(os.Stdout)

	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type listing struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Record *struct {
		ProjectID string `json:"project_id"`
		VersionID string `json:"version_id"`
	} `json:"record"`
}

func listJSON(t *testing.T, cfgPath string) map[string]listing {
	t.Helper()
	out, err := run(t, "--config", cfgPath, "-o", "json", "list")
	require.NoError(t, err)
	var items []listing
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	byName := make(map[string]listing, len(items))
	for _, l := range items {
		byName[l.Name] = l
	}
	return byName
}

func TestInstallToggleUpdateCycle(t *testing.T) {
	root := t.TempDir()
	api := newFakeModrinth(t)
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	api.project("P7dR8mSH", "fabric-api", "Fabric API")
	api.project("AANobbMI", "sodium", "Sodium")
	api.publish("P7dR8mSH", "api100", "0.100.0", base)
	api.publish("AANobbMI", "sod060", "0.6.0", base, "P7dR8mSH")
	cfgPath, modsDir, metricsFile := writeTempConfig(t, root, api.srv.URL)

	// Install by query pulls in the required dependency.
	_, err := run(t, "--config", cfgPath, "install", "sodium")
	require.NoError(t, err)
	assert.Equal(t, []string{"fabric-api-0.100.0.jar", "sodium-0.6.0.jar"}, testutil.ListDir(t, modsDir))

	mods := listJSON(t, cfgPath)
	require.Contains(t, mods, "sodium-0.6.0.jar")
	require.NotNil(t, mods["sodium-0.6.0.jar"].Record)
	assert.Equal(t, "sod060", mods["sodium-0.6.0.jar"].Record.VersionID)
	assert.Equal(t, "enabled", mods["sodium-0.6.0.jar"].State)

	// Disabling keeps the record.
	_, err = run(t, "--config", cfgPath, "disable", "sodium-0.6.0.jar")
	require.NoError(t, err)
	assert.Equal(t, []string{"fabric-api-0.100.0.jar", "sodium-0.6.0.jar.disabled"}, testutil.ListDir(t, modsDir))

	// A new release is picked up and the mod stays disabled.
	api.publish("AANobbMI", "sod061", "0.6.1", base.Add(24*time.Hour), "P7dR8mSH")
	out, err := run(t, "--config", cfgPath, "update")
	require.NoError(t, err)
	assert.Contains(t, out, "sod061")

	mods = listJSON(t, cfgPath)
	assert.Equal(t, "disabled", mods["sodium-0.6.0.jar"].State)
	assert.Equal(t, "sod061", mods["sodium-0.6.0.jar"].Record.VersionID)
	assert.Equal(t, "sod061", testutil.ReadMarker(t, filepath.Join(modsDir, "sodium-0.6.0.jar.disabled")))

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `modsync_artifacts_total{status="succeeded"}`)

	// Read-only commands keep the last update's metrics.
	_ = listJSON(t, cfgPath)
	_, err = run(t, "--config", cfgPath, "search", "sodium")
	require.NoError(t, err)
	after, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Equal(t, string(metrics), string(after))

	// Nothing left to do.
	out, err = run(t, "--config", cfgPath, "-o", "json", "update")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "succeeded"`)
	assert.Equal(t, 2, strings.Count(out, `"reason": "already current"`))
}

func TestUpdateReportsPartialFailure(t *testing.T) {
	root := t.TempDir()
	api := newFakeModrinth(t)
	api.project("AANobbMI", "sodium", "Sodium")
	api.publish("AANobbMI", "sod060", "0.6.0", time.Now())
	cfgPath, modsDir, _ := writeTempConfig(t, root, api.srv.URL)
	require.NoError(t, os.MkdirAll(modsDir, 0o755))

	testutil.WriteJar(t, modsDir, "sodium.jar", "old")
	testutil.WriteJar(t, modsDir, "mystery-mod.jar", "unknown")

	out, err := run(t, "--config", cfgPath, "update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery-mod.jar")
	assert.Contains(t, out, "sodium.jar")
	assert.Equal(t, "sod060", testutil.ReadMarker(t, filepath.Join(modsDir, "sodium.jar")))
	assert.Equal(t, "unknown", testutil.ReadMarker(t, filepath.Join(modsDir, "mystery-mod.jar")))
}

func TestConfigCommands(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "modsync", "config.yaml")

	_, err := run(t, "--config", cfgPath, "config", "init")
	require.NoError(t, err)
	_, err = run(t, "--config", cfgPath, "config", "init")
	assert.ErrorIs(t, err, os.ErrExist)

	_, err = run(t, "--config", cfgPath, "config", "set", "loader", "quilt")
	require.NoError(t, err)
	out, err := run(t, "--config", cfgPath, "config", "get", "loader")
	require.NoError(t, err)
	assert.Equal(t, "quilt\n", out)

	// Flags override the file without being saved.
	out, err = run(t, "--config", cfgPath, "--loader", "forge", "config", "get", "loader")
	require.NoError(t, err)
	assert.Equal(t, "forge\n", out)

	_, err = run(t, "--config", cfgPath, "config", "set", "loader", "bukkit")
	assert.Error(t, err)

	_, err = run(t, "--config", cfgPath, "config", "provider", "github", "disable")
	require.NoError(t, err)
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "loader: quilt")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "modsync version")
}
