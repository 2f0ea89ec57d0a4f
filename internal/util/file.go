package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes through a temp file in the target directory and
// renames into place, so an interrupted export never leaves a half-written
// file behind. Returns the number of bytes written.
func WriteFileAtomic(path string, write func(f *os.File) error) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("output folder: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return 0, err
	}

	info, statErr := tmp.Stat()

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}

	if statErr != nil {
		return 0, nil
	}

	return info.Size(), nil
}
