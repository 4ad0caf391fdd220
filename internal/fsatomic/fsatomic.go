// Package fsatomic replaces configuration files atomically.
package fsatomic

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// DefaultPerm is used for new files when no mode is given.
const DefaultPerm fs.FileMode = 0o644

// WriteFile writes data to path+".tmp", syncs it and renames it over path.
// The existing file's mode is kept; perm applies only when path is new and
// falls back to DefaultPerm when zero. On any error the temp file is removed.
func WriteFile(fsys afero.Fs, path string, data []byte, perm fs.FileMode) error {
	if perm == 0 {
		perm = DefaultPerm
	}
	if fi, err := fsys.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	return nil
}

// ReadFile returns the contents of path, or exists=false when it is missing.
// A stale path+".tmp" left by an interrupted write is removed.
func ReadFile(fsys afero.Fs, path string) (data []byte, exists bool, err error) {
	_ = fsys.Remove(path + ".tmp")

	data, err = afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Touch creates path empty if it does not exist. Existing files are left alone.
func Touch(fsys afero.Fs, path string) (created bool, err error) {
	exists, err := afero.Exists(fsys, path)
	if err != nil || exists {
		return false, err
	}
	if err := WriteFile(fsys, path, nil, 0); err != nil {
		return false, err
	}
	return true, nil
}
