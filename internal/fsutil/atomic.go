// Package fsutil provides the atomic file replacement used for every file a
// run publishes (the render data file and the output image).
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path with data so that a concurrent reader sees
// either the old contents or the new contents, never a partial file. The data
// is staged in a temporary file in the same directory and renamed over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := StageFile(path, data, perm)
	if err != nil {
		return err
	}
	return Publish(tmp, path)
}

// StageFile writes data to a new temporary file next to path and returns its
// name. path itself is not touched.
func StageFile(path string, data []byte, perm os.FileMode) (string, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmp := f.Name()

	fail := func(err error) (string, error) {
		f.Close()
		os.Remove(tmp)
		return "", err
	}

	if _, err := f.Write(data); err != nil {
		return fail(fmt.Errorf("failed to write temp file: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync temp file: %w", err))
	}
	if err := f.Chmod(perm); err != nil {
		return fail(fmt.Errorf("failed to chmod temp file: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return tmp, nil
}

// Publish renames a staged file over path. The staged file is removed if the
// rename fails.
func Publish(tmp, path string) error {
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
