package platform

// Package platform provides loader and game-version compatibility rules.

const (
	LoaderFabric     = "fabric"
	LoaderForge      = "forge"
	LoaderNeoForge   = "neoforge"
	LoaderQuilt      = "quilt"
	LoaderLiteLoader = "liteloader"
	LoaderCauldron   = "cauldron"
	// LoaderAny marks a build that works under every loader (e.g. data-driven libraries).
	LoaderAny = "any"

	// OS names used to locate the default game directory.
	OSWindows = "windows"
	OSLinux   = "linux"
	OSDarwin  = "darwin"
)

// ValidLoaders returns the loader names accepted as a target.
func ValidLoaders() []string {
	return []string{
		LoaderFabric,
		LoaderForge,
		LoaderNeoForge,
		LoaderQuilt,
		LoaderLiteLoader,
		LoaderCauldron,
	}
}
