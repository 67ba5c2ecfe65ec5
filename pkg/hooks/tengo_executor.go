package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
)

// TengoRunner runs Tengo scripts.
type TengoRunner struct {
	scripts map[HookType][]byte
	mutex   sync.RWMutex
}

// NewTengoRunner creates a runner without scripts.
func NewTengoRunner() *TengoRunner {
	return &TengoRunner{scripts: make(map[HookType][]byte)}
}

// AddScript adds or replaces the script for hookType.
func (r *TengoRunner) AddScript(hookType HookType, script []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.scripts[hookType] = script
}

// Has implements Runner.
func (r *TengoRunner) Has(hookType HookType) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.scripts[hookType]
	return ok
}

// Run implements Runner. The script imports the "context" module for the
// artifact details and reports a failure by setting a global err to a
// non-empty string or an error value.
func (r *TengoRunner) Run(ctx context.Context, hookType HookType, hc HookContext) error {
	r.mutex.RLock()
	src, ok := r.scripts[hookType]
	r.mutex.RUnlock()
	if !ok {
		return nil
	}

	logger.Debug("Executing hook script", logger.Fields{
		"hook":     string(hookType),
		"artifact": hc.Artifact,
		"version":  hc.NewVersion,
	})

	modules := stdlib.GetModuleMap(stdlib.AllModuleNames()...)
	modules.AddBuiltinModule("context", map[string]tengo.Object{
		"operation":   &tengo.String{Value: hc.Operation},
		"artifact":    &tengo.String{Value: hc.Artifact},
		"path":        &tengo.String{Value: hc.Path},
		"dir":         &tengo.String{Value: hc.Dir},
		"provider":    &tengo.String{Value: hc.Provider},
		"project_id":  &tengo.String{Value: hc.ProjectID},
		"old_version": &tengo.String{Value: hc.OldVersion},
		"new_version": &tengo.String{Value: hc.NewVersion},
	})

	script := tengo.NewScript(src)
	script.SetImports(modules)

	compiled, err := script.RunContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", hookType, errors.ErrHookExecution, err)
	}

	if errVar := compiled.Get("err"); errVar != nil {
		switch v := errVar.Value().(type) {
		case error:
			return fmt.Errorf("%s: %w: %w", hookType, errors.ErrHookScript, v)
		case string:
			if v != "" {
				return fmt.Errorf("%s: %w: %s", hookType, errors.ErrHookScript, v)
			}
		}
	}
	return nil
}
