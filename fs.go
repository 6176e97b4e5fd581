package loxodo

import (
	"os"

	"github.com/absfs/absfs"
)

// FileSystem is the narrow filesystem surface the vault codec needs. It
// is a subset of absfs.FileSystem, so any AbsFs-compatible filesystem —
// including an in-memory one for tests — satisfies it.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// OSFileSystem returns a FileSystem backed by the os package. Open and
// Save use it.
func OSFileSystem() FileSystem {
	return osFS{}
}

type osFS struct{}

func (osFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (osFS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (osFS) Remove(name string) error {
	return os.Remove(name)
}
