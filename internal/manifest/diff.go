package manifest

// DiffInfo is the three-way partition between a local and a remote
// manifest. It is mutable during validation: entries are dropped from
// Added/Modified when the disk already matches the remote, and appended
// when local corruption is discovered.
type DiffInfo struct {
	Added    []FileEntry
	Modified []FileEntry
	Deleted  []FileEntry
}

// Empty reports whether nothing changed between the two manifests.
func (d *DiffInfo) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// Pending returns the entries that still need downloading.
func (d *DiffInfo) Pending() []FileEntry {
	out := make([]FileEntry, 0, len(d.Added)+len(d.Modified))
	out = append(out, d.Added...)
	out = append(out, d.Modified...)
	return out
}

// Compare diffs the local manifest (receiver, the baseline) against the
// remote one. Names are matched case-sensitively. Entries present in both
// with equal checksum appear in none of the three sets.
func (m *Manifest) Compare(remote *Manifest) *DiffInfo {
	diff := &DiffInfo{}

	local := make(map[string]FileEntry, len(m.Entries))
	for _, e := range m.Entries {
		local[e.Name] = e
	}

	seen := make(map[string]struct{}, len(remote.Entries))
	for _, re := range remote.Entries {
		seen[re.Name] = struct{}{}
		le, ok := local[re.Name]
		if !ok {
			diff.Added = append(diff.Added, re)
			continue
		}
		if le.Checksum != re.Checksum {
			diff.Modified = append(diff.Modified, re)
		}
	}

	for _, le := range m.Entries {
		if _, ok := seen[le.Name]; !ok {
			diff.Deleted = append(diff.Deleted, le)
		}
	}

	return diff
}
