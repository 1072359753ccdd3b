package store

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFsWriteAndRename(t *testing.T) {
	m := NewMapFs(nil)

	require.NoError(t, m.WriteFile("a.tmp", []byte("hello")))
	require.NoError(t, m.Rename("a.tmp", "a.crt"))

	data, err := fs.ReadFile(m.FS(), "a.crt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = m.Stat("a.tmp")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMapFsRenameMissing(t *testing.T) {
	m := NewMapFs(nil)
	err := m.Rename("ghost", "a.crt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestNativeFsWriteAndRename(t *testing.T) {
	dir := t.TempDir()
	n := NewNativeFs(dir)

	require.NoError(t, n.WriteFile("a.tmp", []byte("hello")))
	require.NoError(t, n.Rename("a.tmp", "a.crt"))

	data, err := fs.ReadFile(n.FS(), "a.crt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = n.Stat("a.crt")
	assert.NoError(t, err)
}

func TestNativeFsRejectsAbsolutePaths(t *testing.T) {
	n := NewNativeFs(t.TempDir())
	err := n.WriteFile(filepath.Join(string(filepath.Separator), "etc", "evil"), []byte("x"))
	assert.Error(t, err)
}
