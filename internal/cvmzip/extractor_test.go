package cvmzip

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return zipPath
}

func TestExtractHappyPath(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{
		"a.csv": "col1;col2\nv1;v2\nv3;v4\n",
		"b.csv": "colx;coly\nz1;z2\n",
	})
	outDir := t.TempDir()

	ext := New(nil, nil)
	created, err := ext.Extract(zipPath, outDir)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	for _, r := range created {
		_, statErr := os.Stat(r.ParquetPath)
		assert.NoError(t, statErr)
		assert.Zero(t, r.SkippedRows)
	}
}

func TestExtractCountsSkippedRows(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{
		"a.csv": "col1;col2\nv1;v2\n\"unterminated;v4\nv5;v6\n",
	})
	outDir := t.TempDir()

	ext := New(nil, nil)
	created, err := ext.Extract(zipPath, outDir)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Positive(t, created[0].SkippedRows)
}

func TestExtractNoCSVEntriesReturnsEmpty(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{"readme.txt": "hello"})
	outDir := t.TempDir()

	ext := New(nil, nil)
	created, err := ext.Extract(zipPath, outDir)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestExtractRollsBackOnCorruptedCSVEntry(t *testing.T) {
	// b.csv has only a header and no data rows, so zero rows convert:
	// forces a per-file failure and triggers rollback of a.csv's output.
	zipPath := writeTestZip(t, map[string]string{
		"a.csv": "col1;col2\nv1;v2\n",
		"b.csv": "colx;coly\n",
	})
	outDir := t.TempDir()

	ext := New(nil, nil)
	_, err := ext.Extract(zipPath, outDir)
	require.Error(t, err)

	entries, _ := os.ReadDir(outDir)
	assert.Empty(t, entries, "no parquet files should remain after rollback")
}

func TestExtractCorruptedZip(t *testing.T) {
	dir := t.TempDir()
	badZip := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(badZip, []byte("not a zip"), 0o644))

	ext := New(nil, nil)
	_, err := ext.Extract(badZip, dir)
	assert.Error(t, err)
}
