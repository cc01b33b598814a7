package fsatomic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileNeverLeavesTempOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	require.NoError(t, WriteFile(path, []byte("hello"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = os.Stat(TempPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateTempCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.bin")

	f, err := CreateTemp(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)

	require.NoError(t, Commit(f, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestCreateTempDiscard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	f, err := CreateTemp(path)
	require.NoError(t, err)
	require.NoError(t, Discard(f))

	_, err = os.Stat(TempPath(path))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestHasFreeSpace(t *testing.T) {
	dir := t.TempDir()
	ok, err := HasFreeSpace(dir, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasFreeSpace(dir, 1<<62)
	require.NoError(t, err)
	assert.False(t, ok)
}
