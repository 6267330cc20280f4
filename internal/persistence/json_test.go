package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestSaveAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.json")
	in := sample{Name: "library", Items: []string{"a", "b"}}

	require.NoError(t, SaveJSON(path, in))

	var out sample
	require.NoError(t, LoadJSON(path, &out))
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestSaveJSONReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, SaveJSON(path, sample{Name: "first"}))
	require.NoError(t, SaveJSON(path, sample{Name: "second"}))

	var out sample
	require.NoError(t, LoadJSON(path, &out))
	assert.Equal(t, "second", out.Name)
}

func TestSaveJSONFailsWhenTargetIsDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "index.json")
	require.NoError(t, os.Mkdir(target, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(target, "child"), []byte("x"), 0600))

	err := SaveJSON(target, sample{Name: "x"})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is cleaned up after a failed rename")
}

func TestLoadJSONMissingFile(t *testing.T) {
	var out sample
	err := LoadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadJSONCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	var out sample
	err := LoadJSON(path, &out)
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}
