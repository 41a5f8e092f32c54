package manifest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// FileEntry is one file record in a manifest. Identity is Name; entries are
// immutable once produced by a manifest read or a validation pass.
type FileEntry struct {
	Name     string
	Checksum string
	Size     int64
}

// Manifest is a named, checksummed file listing read from a text resource.
// A failed read does not surface as a returned error: it is recorded in Err
// and Entries stays empty. Callers must check Err before trusting Entries.
type Manifest struct {
	Location string
	Entries  []FileEntry
	Err      string

	// Client serves http(s) locations. Nil means http.DefaultClient.
	Client *http.Client
}

func New(location string) *Manifest {
	return &Manifest{Location: location}
}

// Read loads and parses the resource at Location. Local paths and http(s)
// URLs are both accepted. Any failure resets Entries and records Err.
func (m *Manifest) Read(ctx context.Context) {
	m.Entries = nil
	m.Err = ""

	body, err := m.open(ctx)
	if err != nil {
		m.Err = err.Error()
		return
	}
	defer body.Close()

	entries, err := Parse(body)
	if err != nil {
		m.Err = err.Error()
		return
	}
	m.Entries = entries
}

func (m *Manifest) open(ctx context.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(m.Location, "http://") || strings.HasPrefix(m.Location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Location, nil)
		if err != nil {
			return nil, err
		}
		client := m.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: unexpected status %s", m.Location, resp.Status)
		}
		return resp.Body, nil
	}
	return os.Open(m.Location)
}

// Parse reads entries from the line format `name|checksum|size`. Blank
// lines are skipped; anything else malformed fails the whole parse.
func Parse(r io.Reader) ([]FileEntry, error) {
	var entries []FileEntry

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, "|")
		if len(fields) != 3 {
			return nil, fmt.Errorf("manifest line %d: expected 3 fields, got %d", line, len(fields))
		}

		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: bad size %q: %w", line, fields[2], err)
		}

		entries = append(entries, FileEntry{
			Name:     fields[0],
			Checksum: fields[1],
			Size:     size,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Serialize renders entries back to the exact text format Parse reads, in
// entry order. Parse(Serialize(entries)) round-trips losslessly.
func Serialize(entries []FileEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Name)
		b.WriteByte('|')
		b.WriteString(e.Checksum)
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(e.Size, 10))
		b.WriteByte('\n')
	}
	return b.String()
}

// Serialize renders the manifest's own entries.
func (m *Manifest) Serialize() string {
	return Serialize(m.Entries)
}
