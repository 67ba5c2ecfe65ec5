package fsutil

// Permission constants used for everything the tool writes.
const (
	FileModeDefault = 0o644 // -rw-r--r--: installed artifacts, backups
	FileModeSecure  = 0o640 // -rw-r-----: config files carrying tokens

	DirModeDefault = 0o755 // drwxr-xr-x
	DirModeSecure  = 0o750 // drwxr-x---
)

// Name patterns for scratch files created next to their target so the final
// rename never crosses a filesystem boundary.
const (
	TempPattern   = ".modsync-*.tmp"
	BackupPattern = ".modsync-*.bak"
)
