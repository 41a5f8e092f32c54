package extraction

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestZipExtract(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "seed.zip")
	files := map[string]string{
		"manifest.txt":  "a|aa|1\n",
		"a":             "top level file",
		"nested/deep/b": "nested file",
	}
	writeZip(t, archive, files)

	dest := filepath.Join(dir, "out")
	var lastDone, lastTotal int
	extracted, err := NewZip().Extract(context.Background(), archive, dest, func(done, total int) {
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)

	assert.Len(t, extracted, 3)
	assert.Equal(t, 3, lastDone)
	assert.Equal(t, 3, lastTotal)

	for name, content := range files {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	}
}

func TestZipExtractOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "seed.zip")
	writeZip(t, archive, map[string]string{"a": "fresh"})

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a"), []byte("stale"), 0644))

	_, err := NewZip().Extract(context.Background(), archive, dest, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestZipExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../escape": "nope"})

	_, err := NewZip().Extract(context.Background(), archive, filepath.Join(dir, "out"), nil)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape"))
}

func TestZipExtractNotAnArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not.zip")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

	_, err := NewZip().Extract(context.Background(), path, filepath.Join(dir, "out"), nil)
	assert.Error(t, err)
}

func TestZipCanExtract(t *testing.T) {
	dir := t.TempDir()

	real := filepath.Join(dir, "real.zip")
	writeZip(t, real, map[string]string{"a": "x"})

	fake := filepath.Join(dir, "fake.zip")
	require.NoError(t, os.WriteFile(fake, []byte("not zip data"), 0644))

	wrongExt := filepath.Join(dir, "archive.tar")
	require.NoError(t, os.WriteFile(wrongExt, []byte{0x50, 0x4B, 0x03, 0x04}, 0644))

	z := NewZip()

	ok, err := z.CanExtract(real)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = z.CanExtract(fake)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = z.CanExtract(wrongExt)
	require.NoError(t, err)
	assert.False(t, ok, "extension gate runs before the signature check")
}
