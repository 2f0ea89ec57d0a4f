package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "follows.csv")

	n, err := WriteFileAtomic(path, func(f *os.File) error {
		_, werr := f.WriteString("title,source_url\n")
		return werr
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len("title,source_url\n")), n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "title,source_url\n", string(b))
}

func TestWriteFileAtomic_FailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "follows.csv")

	_, err := WriteFileAtomic(path, func(f *os.File) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no target file on failure")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp file left behind")
}

func TestWriteFileAtomic_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	_, err := WriteFileAtomic(path, func(f *os.File) error {
		_, werr := f.WriteString("new")
		return werr
	})
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
}
