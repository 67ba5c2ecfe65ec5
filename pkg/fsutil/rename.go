package fsutil

import (
	"fmt"
	"os"
)

func renameCheckThenMove(oldpath, newpath string) error {
	exists, err := Exists(newpath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", newpath, err)
	}
	if exists {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrExist}
	}
	if err := os.Rename(oldpath, newpath); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", oldpath, newpath, err)
	}
	return nil
}
