package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expEntries []FileEntry
		expErr     bool
	}{
		{
			name:  "normal",
			input: "a.txt|aaa|100\nsub/b.bin|bbb|50\n",
			expEntries: []FileEntry{
				{Name: "a.txt", Checksum: "aaa", Size: 100},
				{Name: "sub/b.bin", Checksum: "bbb", Size: 50},
			},
		},
		{
			name:  "blank lines skipped",
			input: "\na.txt|aaa|100\n\n",
			expEntries: []FileEntry{
				{Name: "a.txt", Checksum: "aaa", Size: 100},
			},
		},
		{
			name:   "missing field",
			input:  "a.txt|aaa\n",
			expErr: true,
		},
		{
			name:   "bad size",
			input:  "a.txt|aaa|big\n",
			expErr: true,
		},
		{
			name:       "empty",
			input:      "",
			expEntries: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input))
			if tc.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expEntries, entries)
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	entries := []FileEntry{
		{Name: "z.dat", Checksum: "0123abcd", Size: 1},
		{Name: "a.dat", Checksum: "ffff", Size: 9000000000},
		{Name: "dir/nested/file", Checksum: "aa", Size: 0},
	}

	parsed, err := Parse(strings.NewReader(Serialize(entries)))
	require.NoError(t, err)
	assert.Equal(t, entries, parsed)
}

func TestReadLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte("a|aa|1\n"), 0644))

	m := New(path)
	m.Read(context.Background())

	assert.Empty(t, m.Err)
	assert.Len(t, m.Entries, 1)
}

func TestReadMissingFileSetsErr(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "nope.txt"))
	m.Read(context.Background())

	assert.NotEmpty(t, m.Err)
	assert.Empty(t, m.Entries)
}

func TestReadCorruptFileSetsErr(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a manifest at all"), 0644))

	m := New(path)
	m.Read(context.Background())

	assert.NotEmpty(t, m.Err)
	assert.Empty(t, m.Entries)
}

func TestReadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("a|aa|1\nb|bb|2\n"))
	}))
	defer srv.Close()

	m := New(srv.URL + "/manifest.txt")
	m.Read(context.Background())

	assert.Empty(t, m.Err)
	assert.Len(t, m.Entries, 2)
}

func TestReadHTTPNotFoundSetsErr(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m := New(srv.URL + "/manifest.txt")
	m.Read(context.Background())

	assert.NotEmpty(t, m.Err)
}

func TestReadClearsPreviousState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte("a|aa|1\n"), 0644))

	m := New(path)
	m.Read(context.Background())
	require.Len(t, m.Entries, 1)

	require.NoError(t, os.Remove(path))
	m.Read(context.Background())

	assert.NotEmpty(t, m.Err)
	assert.Empty(t, m.Entries)
}
