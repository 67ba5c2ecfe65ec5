//go:build linux

package fsutil

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// RenameNoReplace renames oldpath to newpath and fails with an error wrapping
// os.ErrExist when newpath is already present. The check and the rename are a
// single syscall where the kernel and filesystem support RENAME_NOREPLACE.
func RenameNoReplace(oldpath, newpath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST):
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrExist}
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS), errors.Is(err, unix.ENOTSUP):
		return renameCheckThenMove(oldpath, newpath)
	default:
		return fmt.Errorf("failed to rename %s to %s: %w", oldpath, newpath, err)
	}
}
