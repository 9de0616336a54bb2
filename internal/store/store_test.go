package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

func TestFileBackend_SetGetPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	s, err := backend.Open("servers")
	require.NoError(t, err)

	require.NoError(t, s.Set("web1", point{1, 2}))
	require.NoError(t, s.Save())

	backend2, err := NewFileBackend(dir)
	require.NoError(t, err)
	s2, err := backend2.Open("servers")
	require.NoError(t, err)

	var got point
	require.NoError(t, s2.Get("web1", &got))
	assert.Equal(t, point{1, 2}, got)
}

func TestFileBackend_GetMissingKey(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	s, err := backend.Open("servers")
	require.NoError(t, err)

	var got point
	err = s.Get("nope", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileBackend_KeysListsCollections(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	s, err := backend.Open("servers")
	require.NoError(t, err)
	require.NoError(t, s.Set("web1", point{}))
	require.NoError(t, s.Save())

	names, err := backend.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"servers"}, names)
}

func TestFileBackend_Drop(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	s, err := backend.Open("servers")
	require.NoError(t, err)
	require.NoError(t, s.Set("web1", point{}))
	require.NoError(t, s.Save())

	require.NoError(t, s.Drop())
	assert.NoFileExists(t, filepath.Join(dir, "servers"))
}

func TestFileBackend_Incr(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	s, err := backend.Open("counters")
	require.NoError(t, err)

	v, err := s.Incr("hits", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = s.Incr("hits", 4)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestDirectoryBackend_AutoCreatesOnFirstWrite(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewDirectoryBackend(dir)
	require.NoError(t, err)

	s, err := backend.Open("servers")
	require.NoError(t, err)
	require.NoError(t, s.Set("web1", point{3, 4}))

	var got point
	require.NoError(t, s.Get("web1", &got))
	assert.Equal(t, point{3, 4}, got)
}

func TestDirectoryBackend_RejectsSlashInKey(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewDirectoryBackend(dir)
	require.NoError(t, err)
	s, err := backend.Open("servers")
	require.NoError(t, err)

	err = s.Set("a/b", point{})
	assert.Error(t, err)
}

func TestDirectoryBackend_IncrUnsupported(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewDirectoryBackend(dir)
	require.NoError(t, err)
	s, err := backend.Open("servers")
	require.NoError(t, err)

	_, err = s.Incr("x", 1)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestMemoryBackend_RoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	s, err := backend.Open("servers")
	require.NoError(t, err)

	require.NoError(t, s.Set("web1", point{5, 6}))
	var got point
	require.NoError(t, s.Get("web1", &got))
	assert.Equal(t, point{5, 6}, got)

	require.NoError(t, s.Delete("web1"))
	assert.False(t, s.Contains("web1"))
}
