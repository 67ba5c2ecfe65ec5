package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTengoRunner(t *testing.T) {
	hc := HookContext{
		Operation:  "update",
		Artifact:   "sodium.jar",
		Provider:   "modrinth",
		ProjectID:  "AANobbMI",
		OldVersion: "v1",
		NewVersion: "v3",
	}
	tests := []struct {
		name    string
		script  string
		wantErr error
	}{
		{
			name:   "empty script",
			script: `// nothing to do`,
		},
		{
			name: "context values are visible",
			script: `
ctx := import("context")
err := ""
if ctx.new_version != "v3" || ctx.old_version != "v1" || ctx.artifact != "sodium.jar" {
	err = "unexpected context"
}
`,
		},
		{
			name: "script reports failure",
			script: `
ctx := import("context")
err := "pinned: " + ctx.project_id
`,
			wantErr: errors.ErrHookScript,
		},
		{
			name:    "runtime error",
			script:  `non_existent_function()`,
			wantErr: errors.ErrHookExecution,
		},
		{
			name:    "syntax error",
			script:  `invalid tengo syntax !!!`,
			wantErr: errors.ErrHookExecution,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTengoRunner()
			r.AddScript(PreUpdate, []byte(tt.script))

			err := r.Run(context.Background(), PreUpdate, hc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTengoRunnerMissingScript(t *testing.T) {
	r := NewTengoRunner()
	assert.False(t, r.Has(PostUpdate))
	assert.NoError(t, r.Run(context.Background(), PostUpdate, HookContext{}))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pre-update.tengo"), []byte(`err := "stop"`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pre-install.tengo"), []byte(`x := 1`), 0o644))

	r, err := LoadDir(dir)
	require.NoError(t, err)
	assert.True(t, r.Has(PreUpdate))
	assert.False(t, r.Has(PostUpdate))
	assert.ErrorIs(t, r.Run(context.Background(), PreUpdate, HookContext{}), errors.ErrHookScript)

	empty, err := LoadDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, empty.Has(PreUpdate))
}

func TestWriteTemplatesCompileAndKeepExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hooks")
	written, err := WriteTemplates(dir)
	require.NoError(t, err)
	assert.Len(t, written, 2)

	r, err := LoadDir(dir)
	require.NoError(t, err)
	for _, hookType := range HookTypes() {
		assert.NoError(t, r.Run(context.Background(), hookType, HookContext{Artifact: "a.jar"}), hookType)
	}

	written, err = WriteTemplates(dir)
	require.NoError(t, err)
	assert.Empty(t, written)
}
