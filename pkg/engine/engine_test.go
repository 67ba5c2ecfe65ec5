package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/hooks"
	"github.com/glorpus-work/modsync/pkg/lock"
	"github.com/glorpus-work/modsync/pkg/metadata"
	"github.com/glorpus-work/modsync/pkg/metrics"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
	"github.com/glorpus-work/modsync/pkg/provider"
	"github.com/glorpus-work/modsync/pkg/toggle"
	"github.com/glorpus-work/modsync/test/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fabric21 = model.Constraints{Target: platform.Target{GameVersion: "1.21", Loader: "fabric"}}
	now      = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	base     = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	t      *testing.T
	dir    string
	cat    *testutil.Catalog
	engine *Engine
	store  metadata.Store

	mu     sync.Mutex
	events []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		dir:   t.TempDir(),
		cat:   testutil.NewCatalog(model.ProviderModrinth),
		store: metadata.NewStore(),
	}
	f.engine = New(provider.NewRegistry(f.cat), Config{
		Metrics: metrics.New(prometheus.NewRegistry()),
		Hooks: Hooks{OnEvent: func(e Event) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, e)
		}},
	})
	f.engine.Now = func() time.Time { return now }
	return f
}

// tracked writes a jar carrying a record for project at versionID.
func (f *fixture) tracked(name string, project model.Identity, versionID string, installedAt time.Time) string {
	f.t.Helper()
	path := testutil.WriteJar(f.t, f.dir, name, versionID)
	require.NoError(f.t, f.store.Write(context.Background(), path, &model.Record{
		Provider:        project.Provider,
		ProjectID:       project.ID,
		Slug:            project.Slug,
		VersionID:       versionID,
		PlatformVersion: "1.21",
		Loader:          "fabric",
		InstalledAt:     installedAt,
	}))
	return path
}

func (f *fixture) record(path string) *model.Record {
	f.t.Helper()
	rec, err := f.store.Read(context.Background(), path)
	require.NoError(f.t, err)
	return rec
}

func (f *fixture) release(project model.Identity, id string, gv string, published time.Time, deps ...model.DependencyEdge) *model.Version {
	return f.cat.AddVersion(project, testutil.Release{
		ID:           id,
		Number:       id,
		GameVersions: []string{gv},
		Loaders:      []string{"fabric"},
		Published:    published,
		Dependencies: deps,
		Content:      testutil.JarBytes(f.t, id),
	})
}

func (f *fixture) update(opts UpdateOptions) *Report {
	f.t.Helper()
	report, err := f.engine.UpdateDirectory(context.Background(), f.dir, fabric21, opts)
	require.NoError(f.t, err)
	return report
}

func (f *fixture) sodium() (model.Identity, string) {
	sodium := f.cat.Project("AANobbMI", "sodium", "Sodium")
	f.release(sodium, "v3", "1.21", base.Add(48*time.Hour))
	f.release(sodium, "v2", "1.20", base.Add(24*time.Hour))
	return sodium, f.tracked("sodium.jar", sodium, "v1", base)
}

func TestUpdateDirectorySelectsNewestMatchingVersion(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()

	report := f.update(UpdateOptions{})

	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, StatusSucceeded, item.Status, item.Error())
	assert.Equal(t, "v1", item.FromVersion)
	assert.Equal(t, "v3", item.ToVersion)
	assert.Equal(t, model.StatusSucceeded, report.Status())
	assert.NoError(t, report.Err())

	assert.Equal(t, "v3", testutil.ReadMarker(t, path))
	rec := f.record(path)
	assert.Equal(t, "v3", rec.VersionID)
	assert.Equal(t, now, rec.InstalledAt)
	assert.Equal(t, "1.21", rec.PlatformVersion)
	assert.Equal(t, []string{"sodium.jar"}, testutil.ListDir(t, f.dir))
	assert.Equal(t, 1, f.cat.Downloads())
	assert.Equal(t, "done", f.events[len(f.events)-1].Phase)
}

func TestUpdateDirectoryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.sodium()

	f.update(UpdateOptions{})
	second := f.update(UpdateOptions{})

	require.Len(t, second.Items, 1)
	assert.Equal(t, StatusSkipped, second.Items[0].Status)
	assert.Equal(t, "already current", second.Items[0].Reason)
	assert.Equal(t, 1, f.cat.Downloads(), "second run downloads nothing")
}

func TestUpdateDirectoryAmbiguousLeavesFileUntouched(t *testing.T) {
	f := newFixture(t)
	f.cat.AddProject(f.cat.Project("a", "sodium-reforged", "Sodium Reforged"))
	f.cat.AddProject(f.cat.Project("b", "sodiumreforged", "Sodium Reforged"))
	path := testutil.WriteJar(t, f.dir, "Sodium-Reforged.jar", "local")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	report := f.update(UpdateOptions{})

	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, errors.ErrAmbiguous)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, f.cat.Downloads())
	assert.Equal(t, model.StatusFailed, report.Status())
	assert.Error(t, report.Err())
}

func TestUpdateDirectoryChecksumRetry(t *testing.T) {
	t.Run("one bad download is retried", func(t *testing.T) {
		f := newFixture(t)
		_, path := f.sodium()
		f.cat.CorruptNext("v3", 1)

		report := f.update(UpdateOptions{})

		assert.Equal(t, StatusSucceeded, report.Items[0].Status, report.Items[0].Error())
		assert.Equal(t, 2, f.cat.Downloads())
		assert.Equal(t, "v3", testutil.ReadMarker(t, path))
	})

	t.Run("two bad downloads fail the artifact", func(t *testing.T) {
		f := newFixture(t)
		_, path := f.sodium()
		f.cat.CorruptNext("v3", 2)

		report := f.update(UpdateOptions{})

		assert.ErrorIs(t, report.Items[0].Err, errors.ErrChecksumMismatch)
		assert.Equal(t, "v1", testutil.ReadMarker(t, path))
		assert.Equal(t, "v1", f.record(path).VersionID)
		assert.Equal(t, []string{"sodium.jar"}, testutil.ListDir(t, f.dir))
	})
}

type failingStore struct {
	metadata.Store
}

func (failingStore) Write(context.Context, string, *model.Record) error {
	return errors.Wrap(errors.ErrValidation, "disk full")
}

func TestUpdateDirectoryRestoresOriginalWhenRecordWriteFails(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()
	f.engine.Store = failingStore{Store: f.store}

	report := f.update(UpdateOptions{})

	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, errors.ErrValidation)
	assert.Equal(t, "v1", testutil.ReadMarker(t, path))
	assert.Equal(t, "v1", f.record(path).VersionID)
	assert.Equal(t, []string{"sodium.jar"}, testutil.ListDir(t, f.dir))
}

type observingStore struct {
	metadata.Store
	onWrite func(path string)
}

func (s observingStore) Write(ctx context.Context, path string, rec *model.Record) error {
	s.onWrite(path)
	return s.Store.Write(ctx, path, rec)
}

func TestUpdateDirectoryEmbedsRecordBeforeReplacing(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()
	var written []string
	f.engine.Store = observingStore{Store: f.store, onWrite: func(p string) {
		written = append(written, p)
		// The artifact still holds the old bytes while the record is embedded.
		assert.Equal(t, "v1", testutil.ReadMarker(t, path))
	}}

	report := f.update(UpdateOptions{})

	require.Len(t, report.Succeeded(), 1)
	require.Len(t, written, 1)
	assert.NotEqual(t, path, written[0])
	assert.Equal(t, f.dir, filepath.Dir(written[0]))
	assert.Equal(t, "v3", testutil.ReadMarker(t, path))
	assert.Equal(t, "v3", f.record(path).VersionID)
	assert.Equal(t, []string{"sodium.jar"}, testutil.ListDir(t, f.dir))
}

func TestUpdateDirectoryKeepPrevious(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()

	report := f.update(UpdateOptions{KeepPrevious: true})

	backup := filepath.Join(f.dir, "sodium.jar.bak")
	assert.Equal(t, backup, report.Items[0].Backup)
	assert.Equal(t, "v1", testutil.ReadMarker(t, backup))
	assert.Equal(t, "v3", testutil.ReadMarker(t, path))
	assert.Equal(t, []string{"sodium.jar", "sodium.jar.bak"}, testutil.ListDir(t, f.dir))

	// The backup is not an artifact and is not picked up again.
	second := f.update(UpdateOptions{KeepPrevious: true})
	require.Len(t, second.Items, 1)
	assert.Equal(t, StatusSkipped, second.Items[0].Status)
}

func TestUpdateDirectoryKeepsDisabledState(t *testing.T) {
	f := newFixture(t)
	sodium := f.cat.Project("AANobbMI", "sodium", "Sodium")
	f.release(sodium, "v3", "1.21", base)
	path := f.tracked("sodium.jar.disabled", sodium, "v1", base)

	report := f.update(UpdateOptions{})

	assert.Equal(t, StatusSucceeded, report.Items[0].Status, report.Items[0].Error())
	assert.Equal(t, path, report.Items[0].Path)
	assert.Equal(t, []string{"sodium.jar.disabled"}, testutil.ListDir(t, f.dir))
	assert.Equal(t, "v3", f.record(path).VersionID)
}

func TestUpdateDirectoryDuplicates(t *testing.T) {
	setup := func(t *testing.T) (*fixture, string, string) {
		f := newFixture(t)
		sodium := f.cat.Project("AANobbMI", "sodium", "Sodium")
		f.release(sodium, "v3", "1.21", base)
		older := f.tracked("sodium-old.jar", sodium, "v1", base)
		newer := f.tracked("sodium-new.jar", sodium, "v2", base.Add(time.Hour))
		return f, older, newer
	}

	t.Run("reject", func(t *testing.T) {
		f, older, newer := setup(t)
		report := f.update(UpdateOptions{})

		require.Len(t, report.Failed(), 2)
		for _, item := range report.Failed() {
			var dup *errors.DuplicateError
			require.True(t, errors.As(item.Err, &dup))
			assert.ElementsMatch(t, []string{older, newer}, dup.Paths)
			assert.ErrorIs(t, item.Err, errors.ErrAmbiguous)
		}
		assert.Equal(t, 0, f.cat.Downloads())
	})

	t.Run("keep newest", func(t *testing.T) {
		f, older, newer := setup(t)
		report := f.update(UpdateOptions{DuplicatePolicy: DuplicateKeepNewest})

		byName := map[string]Outcome{}
		for _, item := range report.Items {
			byName[item.Name] = item
		}
		assert.Equal(t, StatusSucceeded, byName["sodium-new.jar"].Status)
		assert.Equal(t, StatusSkipped, byName["sodium-old.jar"].Status)
		assert.Equal(t, "duplicate of sodium-new.jar", byName["sodium-old.jar"].Reason)
		assert.Equal(t, "v3", f.record(newer).VersionID)
		assert.Equal(t, "v1", f.record(older).VersionID)
	})
}

func TestUpdateDirectoryDryRun(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()

	report := f.update(UpdateOptions{DryRun: true})

	require.Len(t, report.Planned(), 1)
	assert.Equal(t, "v3", report.Planned()[0].ToVersion)
	assert.Equal(t, 0, f.cat.Downloads())
	assert.Equal(t, "v1", f.record(path).VersionID)
}

func TestUpdateDirectoryInstallsMissingDependencies(t *testing.T) {
	f := newFixture(t)
	api := f.cat.Project("P7dR8mSH", "fabric-api", "Fabric API")
	f.release(api, "api-2", "1.21", base)
	sodium := f.cat.Project("AANobbMI", "sodium", "Sodium")
	f.release(sodium, "v3", "1.21", base, model.DependencyEdge{Target: api, Kind: model.DependencyRequired})
	iris := f.cat.Project("YL57xq9U", "iris", "Iris")
	f.release(iris, "i2", "1.21", base,
		model.DependencyEdge{Target: api, Kind: model.DependencyRequired},
		model.DependencyEdge{Target: f.cat.Project("extra", "extra", "Extra"), Kind: model.DependencyOptional},
	)
	f.tracked("sodium.jar", sodium, "v1", base)
	f.tracked("iris.jar", iris, "i1", base)

	report := f.update(UpdateOptions{})

	assert.Equal(t, model.StatusSucceeded, report.Status(), report.Err())
	require.Len(t, report.Items, 3)
	dep := report.Items[0]
	assert.Equal(t, "fabric-api-api-2.jar", dep.Name)
	assert.Equal(t, StatusSucceeded, dep.Status)
	assert.Contains(t, dep.Reason, "required by")
	assert.Equal(t, "api-2", f.record(filepath.Join(f.dir, dep.Name)).VersionID)
	require.Len(t, report.Optional, 1)
	assert.Equal(t, "extra", report.Optional[0].ID)
	assert.Equal(t, 3, f.cat.Downloads(), "shared dependency fetched once")

	second := f.update(UpdateOptions{})
	assert.Len(t, second.Skipped(), 3)
	assert.Equal(t, 3, f.cat.Downloads())
}

func TestUpdateDirectoryIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()
	f.tracked("gone.jar", f.cat.Project("removed", "removed", "Removed"), "r1", base)

	report := f.update(UpdateOptions{Concurrency: 2})

	assert.Equal(t, model.StatusPartial, report.Status())
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "gone.jar", report.Failed()[0].Name)
	assert.ErrorIs(t, report.Failed()[0].Err, errors.ErrNotFound)
	assert.Equal(t, "v3", testutil.ReadMarker(t, path))
}

func TestUpdateDirectoryPreHookFailureKeepsArtifact(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()
	runner := hooks.NewTengoRunner()
	runner.AddScript(hooks.PreUpdate, []byte(`
ctx := import("context")
err := ""
if ctx.project_id == "AANobbMI" { err = "pinned" }
`))
	f.engine.Scripts = runner

	report := f.update(UpdateOptions{})

	assert.ErrorIs(t, report.Items[0].Err, errors.ErrHookScript)
	assert.Equal(t, "v1", testutil.ReadMarker(t, path))
	assert.Equal(t, []string{"sodium.jar"}, testutil.ListDir(t, f.dir))
}

func TestUpdateDirectoryCancellation(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.engine.Hooks.OnEvent = func(e Event) {
		if e.Phase == "downloading" {
			cancel()
		}
	}

	report, err := f.engine.UpdateDirectory(ctx, f.dir, fabric21, UpdateOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, report.Items[0].Err, context.Canceled)
	assert.Equal(t, "v1", testutil.ReadMarker(t, path))
	assert.Equal(t, 0, f.cat.Downloads())
}

func TestUpdateDirectoryConflictingNames(t *testing.T) {
	f := newFixture(t)
	sodium, _ := f.sodium()
	f.tracked("sodium.jar.disabled", sodium, "v1", base)

	report := f.update(UpdateOptions{DuplicatePolicy: DuplicateKeepNewest})

	require.Len(t, report.Failed(), 2)
	for _, item := range report.Failed() {
		assert.ErrorIs(t, item.Err, errors.ErrNameConflict)
	}
	assert.Equal(t, 0, f.cat.Downloads())
}

func TestUpdateDirectoryRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.UpdateDirectory(context.Background(), f.dir, model.Constraints{}, UpdateOptions{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = f.engine.UpdateDirectory(context.Background(), f.dir, fabric21, UpdateOptions{DuplicatePolicy: "coin-flip"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = f.engine.UpdateDirectory(context.Background(), filepath.Join(f.dir, "missing"), fabric21, UpdateOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveAndInstall(t *testing.T) {
	f := newFixture(t)
	api := f.cat.Project("P7dR8mSH", "fabric-api", "Fabric API")
	f.release(api, "api-2", "1.21", base)
	sodium := f.cat.Project("AANobbMI", "sodium", "Sodium")
	f.release(sodium, "v3", "1.21", base, model.DependencyEdge{Target: api, Kind: model.DependencyRequired})
	f.cat.AddProject(sodium)
	dir := filepath.Join(f.dir, "mods")

	report, err := f.engine.ResolveAndInstall(context.Background(), dir, Target{Query: "sodium"}, fabric21)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Len(t, report.Succeeded(), 2)
	assert.Equal(t, []string{"fabric-api-api-2.jar", "sodium-v3.jar"}, testutil.ListDir(t, dir))
	assert.Equal(t, "v3", f.record(filepath.Join(dir, "sodium-v3.jar")).VersionID)

	again, err := f.engine.ResolveAndInstall(context.Background(), dir, Target{Identity: model.Identity{ID: "AANobbMI"}}, model.Constraints{Target: fabric21.Target, Provider: model.ProviderModrinth})
	require.NoError(t, err)
	require.Len(t, again.Items, 1)
	assert.Equal(t, StatusSkipped, again.Items[0].Status)
	assert.Equal(t, 2, f.cat.Downloads())
}

func TestResolveAndInstallNameConflict(t *testing.T) {
	f := newFixture(t)
	sodium := f.cat.Project("AANobbMI", "sodium", "Sodium")
	f.release(sodium, "v3", "1.21", base)
	testutil.WriteJar(t, f.dir, "sodium-v3.jar", "someone else's file")

	report, err := f.engine.ResolveAndInstall(context.Background(), f.dir, Target{Identity: sodium}, fabric21)
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, errors.ErrNameConflict)
	assert.Equal(t, "someone else's file", testutil.ReadMarker(t, filepath.Join(f.dir, "sodium-v3.jar")))
	assert.Equal(t, []string{"sodium-v3.jar"}, testutil.ListDir(t, f.dir))
}

func TestResolveAndInstallRequiresProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ResolveAndInstall(context.Background(), f.dir, Target{Identity: model.Identity{ID: "sodium"}}, fabric21)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestListArtifacts(t *testing.T) {
	f := newFixture(t)
	f.sodium()
	testutil.WriteJar(t, f.dir, "lithium.jar.disabled", "x")

	listing, err := f.engine.ListArtifacts(context.Background(), f.dir)
	require.NoError(t, err)
	require.Len(t, listing, 2)

	assert.Equal(t, "lithium.jar", listing[0].Name)
	assert.Equal(t, model.Disabled, listing[0].State)
	assert.Nil(t, listing[0].Record)

	assert.Equal(t, "sodium.jar", listing[1].Name)
	assert.Equal(t, model.Enabled, listing[1].State)
	require.NotNil(t, listing[1].Record)
	assert.Equal(t, "v1", listing[1].Record.VersionID)
}

func TestApplyTogglesWaitsForReplacementOfSameArtifact(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()
	key := lock.Key(path)

	unlock, err := f.engine.Locks.Lock(context.Background(), key)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		report    *Report
		results   toggle.Results
		updateErr error
		toggleErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		report, updateErr = f.engine.UpdateDirectory(context.Background(), f.dir, fabric21, UpdateOptions{})
	}()
	go func() {
		defer wg.Done()
		results, toggleErr = f.engine.ApplyToggles(context.Background(), f.dir, map[string]model.ToggleState{
			"sodium.jar": model.Disabled,
		})
	}()

	// Both operations park on the artifact's slot while it is held.
	require.Eventually(t, func() bool { return f.engine.Locks.Pending(key) == 3 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "v1", testutil.ReadMarker(t, path))
	_, err = os.Stat(path + model.DisabledSuffix)
	assert.True(t, os.IsNotExist(err))

	unlock()
	wg.Wait()

	require.NoError(t, updateErr)
	require.NoError(t, toggleErr)
	require.Len(t, report.Succeeded(), 1)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	// Whichever ran first, the new bytes and record end up under the disabled name.
	disabled := path + model.DisabledSuffix
	assert.Equal(t, []string{"sodium.jar.disabled"}, testutil.ListDir(t, f.dir))
	assert.Equal(t, "v3", testutil.ReadMarker(t, disabled))
	assert.Equal(t, "v3", f.record(disabled).VersionID)
	assert.Equal(t, 0, f.engine.Locks.Len())
}

func TestApplyToggles(t *testing.T) {
	f := newFixture(t)
	_, path := f.sodium()
	testutil.WriteJar(t, f.dir, "lithium.jar.disabled", "x")

	results, err := f.engine.ApplyToggles(context.Background(), f.dir, map[string]model.ToggleState{
		"sodium.jar":  model.Disabled,
		"lithium.jar": model.Enabled,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, results.Status())
	assert.Equal(t, []string{"lithium.jar", "sodium.jar.disabled"}, testutil.ListDir(t, f.dir))

	// Toggling never touches the embedded record.
	assert.Equal(t, "v1", f.record(path+model.DisabledSuffix).VersionID)
}
