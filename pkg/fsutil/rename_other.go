//go:build !linux

package fsutil

// RenameNoReplace renames oldpath to newpath and fails with an error wrapping
// os.ErrExist when newpath is already present.
func RenameNoReplace(oldpath, newpath string) error {
	return renameCheckThenMove(oldpath, newpath)
}
