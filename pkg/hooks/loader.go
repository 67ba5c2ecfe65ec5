package hooks

import (
	"os"
	"path/filepath"

	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/fsutil"
)

// HookFileExtension is the extension of hook scripts.
const HookFileExtension = ".tengo"

// LoadDir creates a runner from <dir>/<hook-type>.tengo files. A missing or
// empty dir yields a runner without scripts.
func LoadDir(dir string) (*TengoRunner, error) {
	r := NewTengoRunner()
	if dir == "" {
		return r, nil
	}
	for _, hookType := range HookTypes() {
		path := ScriptPath(dir, hookType)
		content, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error reading hook file %s", path)
		}
		r.AddScript(hookType, content)
	}
	return r, nil
}

// ScriptPath returns where the script for hookType lives in dir.
func ScriptPath(dir string, hookType HookType) string {
	return filepath.Join(dir, string(hookType)+HookFileExtension)
}

// WriteTemplates writes a commented template for every hook type that has no
// script in dir yet and returns the paths written.
func WriteTemplates(dir string) ([]string, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, errors.Wrapf(err, "create hooks dir %s", dir)
	}
	var written []string
	for _, hookType := range HookTypes() {
		path := ScriptPath(dir, hookType)
		if exists, err := fsutil.Exists(path); err != nil || exists {
			continue
		}
		if err := os.WriteFile(path, []byte(Template(hookType)), fsutil.FileModeDefault); err != nil {
			return written, errors.Wrapf(err, "write %s", path)
		}
		written = append(written, path)
	}
	return written, nil
}

// Template returns a starter script for hookType.
func Template(hookType HookType) string {
	const fields = `// The "context" module exposes:
//   operation    "install" or "update"
//   artifact     canonical file name, e.g. sodium.jar
//   path, dir    artifact path and its directory
//   provider, project_id
//   old_version, new_version
// Set err to a non-empty string to report a failure.
`
	switch hookType {
	case PreUpdate:
		return `// pre-update: runs after the download is verified and before the
// artifact is replaced. A failure here leaves the artifact untouched.
` + fields + `
ctx := import("context")
err := ""

// Example: refuse updates of one project.
/*
if ctx.project_id == "AANobbMI" {
    err = "sodium is pinned"
}
*/
`
	case PostUpdate:
		return `// post-update: runs after the artifact and its record were written.
// Failures are logged and do not undo the update.
` + fields + `
ctx := import("context")
fmt := import("fmt")
err := ""

// Example: print what changed.
/*
fmt.println(ctx.artifact, ": ", ctx.old_version, " -> ", ctx.new_version)
*/
`
	default:
		return "// Unknown hook type: " + string(hookType) + "\n"
	}
}
