package validator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/gopatch/internal/manifest"
)

func md5hex(data string) string {
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func names(entries []manifest.FileEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestValidateDropsAlreadyCorrectModified(t *testing.T) {
	dir := t.TempDir()

	// disk already holds the remote version of "a"
	content := "new content of a"
	writeFile(t, dir, "a", content)

	local := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "a", Checksum: "stalechecksum", Size: int64(len(content))},
	}}
	remote := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "a", Checksum: md5hex(content), Size: int64(len(content))},
		{Name: "b", Checksum: "md5b", Size: 50},
	}}
	diff := local.Compare(remote)
	require.Equal(t, []string{"a"}, names(diff.Modified))
	require.Equal(t, []string{"b"}, names(diff.Added))

	v := &Validator{Dir: dir, Concurrency: 2}
	size, err := v.Validate(context.Background(), local, remote, diff)
	require.NoError(t, err)

	assert.Empty(t, diff.Modified, "file already matching remote must not be re-downloaded")
	assert.Equal(t, []string{"b"}, names(diff.Added))
	assert.Equal(t, int64(50), size)
}

func TestValidateDropsAlreadyCorrectAdded(t *testing.T) {
	dir := t.TempDir()
	content := "already here"
	writeFile(t, dir, "b", content)

	local := &manifest.Manifest{}
	remote := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "b", Checksum: md5hex(content), Size: int64(len(content))},
	}}
	diff := local.Compare(remote)
	require.Equal(t, []string{"b"}, names(diff.Added))

	v := &Validator{Dir: dir, Concurrency: 2}
	size, err := v.Validate(context.Background(), local, remote, diff)
	require.NoError(t, err)

	assert.Empty(t, diff.Added)
	assert.Zero(t, size)
}

func TestValidateRequeuesCorruptLocalFile(t *testing.T) {
	dir := t.TempDir()

	good := "pristine content"
	writeFile(t, dir, "a", "corrupted!") // different size forces a re-hash

	local := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "a", Checksum: md5hex(good), Size: int64(len(good))},
	}}
	remote := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "a", Checksum: md5hex(good), Size: int64(len(good))},
	}}
	diff := local.Compare(remote)
	require.True(t, diff.Empty(), "checksums agree, diff starts empty")

	v := &Validator{Dir: dir, Concurrency: 2}
	size, err := v.Validate(context.Background(), local, remote, diff)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, names(diff.Added), "corrupt local file must be re-downloaded")
	assert.Equal(t, int64(len(good)), size)
}

func TestValidateIgnoresDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old", "drifted away")

	local := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "old", Checksum: "recordedsum", Size: 4},
	}}
	remote := &manifest.Manifest{}
	diff := local.Compare(remote)
	require.Equal(t, []string{"old"}, names(diff.Deleted))

	v := &Validator{Dir: dir, Concurrency: 2}
	_, err := v.Validate(context.Background(), local, remote, diff)
	require.NoError(t, err)

	assert.Empty(t, diff.Added, "a deleted file is never re-queued, however corrupt")
	assert.Equal(t, []string{"old"}, names(diff.Deleted))
}

func TestValidateScenario(t *testing.T) {
	// local manifest {a: md5_a, 100B}, remote {a: md5_a2, 100B}, {b: md5_b, 50B};
	// disk's a already holds the remote content.
	dir := t.TempDir()
	newA := strings.Repeat("a2", 50) // 100 bytes of replacement content
	require.Len(t, newA, 100)
	writeFile(t, dir, "a", newA)

	local := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "a", Checksum: "md5_a", Size: 100},
	}}
	remote := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "a", Checksum: md5hex(newA), Size: 100},
		{Name: "b", Checksum: "md5_b", Size: 50},
	}}
	diff := local.Compare(remote)

	v := &Validator{Dir: dir, Concurrency: 2}
	size, err := v.Validate(context.Background(), local, remote, diff)
	require.NoError(t, err)

	assert.Empty(t, diff.Modified)
	assert.Equal(t, []string{"b"}, names(diff.Added), "only b is left to download")
	assert.Equal(t, int64(50), size)
}

func TestValidateFinalProgressNotification(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x", "payload x")
	writeFile(t, dir, "y", "payload yy")

	local := &manifest.Manifest{}
	remote := &manifest.Manifest{Entries: []manifest.FileEntry{
		{Name: "x", Checksum: "cx", Size: 9},
		{Name: "y", Checksum: "cy", Size: 10},
	}}
	diff := local.Compare(remote)

	var lastDone, lastTotal int
	v := &Validator{
		Dir:         dir,
		Concurrency: 2,
		OnProgress: func(done, total int) {
			lastDone, lastTotal = done, total
		},
	}
	_, err := v.Validate(context.Background(), local, remote, diff)
	require.NoError(t, err)

	assert.Equal(t, 2, lastDone, "a final 100%% notification is guaranteed")
	assert.Equal(t, 2, lastTotal)
}

func TestValidateIgnoreList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "manifest.txt", "a|aa|1\n")
	writeFile(t, dir, "a", "a")

	local := &manifest.Manifest{}
	remote := &manifest.Manifest{}
	diff := local.Compare(remote)

	var total int
	v := &Validator{
		Dir:         dir,
		Concurrency: 2,
		Ignore:      []string{"manifest.txt"},
		OnProgress:  func(d, t int) { total = t },
	}
	_, err := v.Validate(context.Background(), local, remote, diff)
	require.NoError(t, err)

	assert.Equal(t, 1, total, "the manifest file itself is not validated")
}
