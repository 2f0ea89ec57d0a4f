package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	require.NoError(t, err)

	in := doc{Name: "export", Count: 3}
	require.NoError(t, s.Set("export_state", in))

	var out doc
	ok, err := s.Get("export_state", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestStore_GetMissingKey(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	require.NoError(t, err)

	var out doc
	ok, err := s.Get("nope", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Overwrite(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	require.NoError(t, err)

	require.NoError(t, s.Set("k", doc{Count: 1}))
	require.NoError(t, s.Set("k", doc{Count: 2}))

	var out doc
	ok, err := s.Get("k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, out.Count)
}

func TestStore_Delete(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	require.NoError(t, err)

	require.NoError(t, s.Set("a", doc{}))
	require.NoError(t, s.Set("b", doc{}))
	require.NoError(t, s.Delete("a", "missing"))

	var out doc
	ok, err := s.Get("a", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Get("b", &out)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Watch(t *testing.T) {
	s, err := Open(t.TempDir(), "")
	require.NoError(t, err)

	var seen []string
	unregister := s.Watch(func(key string) { seen = append(seen, key) })

	require.NoError(t, s.Set("one", doc{}))
	require.NoError(t, s.Delete("one"))
	assert.Equal(t, []string{"one", "one"}, seen)

	unregister()
	require.NoError(t, s.Set("two", doc{}))
	assert.Len(t, seen, 2, "unregistered watcher stays silent")
}

func TestStore_FallbackOnUnwritablePrimary(t *testing.T) {
	dir := t.TempDir()

	// a regular file where the primary dir should be makes it unwritable
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0644))

	fallback := filepath.Join(dir, "fallback")
	s, err := Open(filepath.Join(blocked, "data"), fallback)
	require.NoError(t, err)

	require.NoError(t, s.Set("k", doc{Count: 7}))

	var out doc
	ok, err := s.Get("k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, out.Count)

	_, err = os.Stat(filepath.Join(fallback, "k.json"))
	assert.NoError(t, err, "value landed in the fallback area")
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "")
	require.NoError(t, err)

	require.NoError(t, s.Set("k", doc{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestOpen_RequiresPrimary(t *testing.T) {
	_, err := Open("", "whatever")
	assert.Error(t, err)
}
