package validator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datallboy/gopatch/internal/fsutil"
	"github.com/datallboy/gopatch/internal/manifest"
)

// DefaultConcurrency is the hashing pool size. Hashing is disk-bound;
// too many workers add contention, not speed.
const DefaultConcurrency = 20

// DefaultInterval throttles progress notifications.
const DefaultInterval = 500 * time.Millisecond

// ProgressFunc reports validation progress as completed-file-count out of
// total-file-count.
type ProgressFunc func(done, total int)

// Validator recomputes checksums for the files under Dir and repairs a
// manifest diff where the disk disagrees with it.
type Validator struct {
	Dir         string
	Concurrency int
	Interval    time.Duration
	OnProgress  ProgressFunc

	// Ignore lists relative names excluded from validation, such as the
	// manifest file living inside Dir.
	Ignore []string
}

type localFile struct {
	name string
	size int64
}

// Validate hashes the local file set and corrects diff in place:
// added/modified entries whose on-disk checksum already equals the remote
// checksum are dropped (nothing to download), and local files whose content
// no longer matches their local-manifest record are re-queued as added when
// the remote manifest still carries them. Returns the total byte size of
// the revised added+modified set.
//
// Validation is all-or-nothing: any I/O failure aborts the pass and the
// diff is left untouched.
func (v *Validator) Validate(ctx context.Context, local, remote *manifest.Manifest, diff *manifest.DiffInfo) (int64, error) {
	concurrency := v.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	interval := v.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	files, err := v.enumerate()
	if err != nil {
		return 0, fmt.Errorf("enumerate local files: %w", err)
	}

	localByName := make(map[string]manifest.FileEntry, len(local.Entries))
	for _, e := range local.Entries {
		localByName[e.Name] = e
	}

	flagged := make(map[string]struct{}, len(diff.Added)+len(diff.Modified))
	for _, e := range diff.Added {
		flagged[e.Name] = struct{}{}
	}
	for _, e := range diff.Modified {
		flagged[e.Name] = struct{}{}
	}

	// The local manifest doubles as a checksum cache: a file whose size
	// still matches its record keeps the recorded checksum and skips the
	// hash pool. Files the diff already questions are always re-hashed,
	// since deciding whether they need a download is the whole point.
	checksums := make(map[string]string, len(files))
	var toHash []localFile
	for _, f := range files {
		if _, ok := flagged[f.name]; !ok {
			if e, ok := localByName[f.name]; ok && e.Size == f.size {
				checksums[f.name] = e.Checksum
				continue
			}
		}
		toHash = append(toHash, f)
	}

	total := len(files)
	var done atomic.Int64
	done.Store(int64(total - len(toHash)))

	stopProgress := v.startProgress(&done, total, interval)

	hashed, err := v.hashPool(ctx, toHash, concurrency, &done)
	stopProgress()
	if err != nil {
		return 0, err
	}
	if v.OnProgress != nil {
		v.OnProgress(total, total)
	}

	for name, sum := range hashed {
		checksums[name] = sum
	}

	repair(checksums, localByName, remote, diff)

	var size int64
	for _, e := range diff.Added {
		size += e.Size
	}
	for _, e := range diff.Modified {
		size += e.Size
	}
	return size, nil
}

func (v *Validator) enumerate() ([]localFile, error) {
	names, err := fsutil.ListFiles(v.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	ignored := make(map[string]struct{}, len(v.Ignore))
	for _, name := range v.Ignore {
		ignored[name] = struct{}{}
	}

	files := make([]localFile, 0, len(names))
	for _, name := range names {
		if _, ok := ignored[name]; ok {
			continue
		}
		info, err := os.Stat(filepath.Join(v.Dir, filepath.FromSlash(name)))
		if err != nil {
			return nil, err
		}
		files = append(files, localFile{name: name, size: info.Size()})
	}
	return files, nil
}

// hashPool distributes files across a fixed worker pool. Files are sorted
// by descending size and dealt round-robin so every worker gets a similar
// byte load, then each worker shuffles its share so heavy and light files
// interleave instead of queuing all the large ones first.
func (v *Validator) hashPool(ctx context.Context, files []localFile, concurrency int, done *atomic.Int64) (map[string]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	sorted := make([]localFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].size > sorted[j].size })

	if concurrency > len(sorted) {
		concurrency = len(sorted)
	}
	buckets := make([][]localFile, concurrency)
	for i, f := range sorted {
		buckets[i%concurrency] = append(buckets[i%concurrency], f)
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]map[string]string, concurrency)
	errs := make([]error, concurrency)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			bucket := buckets[id]
			rand.Shuffle(len(bucket), func(i, j int) {
				bucket[i], bucket[j] = bucket[j], bucket[i]
			})

			out := make(map[string]string, len(bucket))
			for _, f := range bucket {
				select {
				case <-poolCtx.Done():
					errs[id] = poolCtx.Err()
					return
				default:
				}

				sum, err := fsutil.FileMD5(filepath.Join(v.Dir, filepath.FromSlash(f.name)))
				if err != nil {
					errs[id] = err
					cancel()
					return
				}
				out[f.name] = sum
				done.Add(1)
			}
			results[id] = out
		}(w)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && err != context.Canceled {
			return nil, fmt.Errorf("checksum failed: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(files))
	for _, m := range results {
		for name, sum := range m {
			merged[name] = sum
		}
	}
	return merged, nil
}

func (v *Validator) startProgress(done *atomic.Int64, total int, interval time.Duration) func() {
	if v.OnProgress == nil || total == 0 {
		return func() {}
	}

	stop := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				v.OnProgress(int(done.Load()), total)
			case <-stop:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

// repair reconciles the diff with the checksums actually on disk.
func repair(checksums map[string]string, localByName map[string]manifest.FileEntry, remote *manifest.Manifest, diff *manifest.DiffInfo) {
	correct := func(entries []manifest.FileEntry) []manifest.FileEntry {
		kept := entries[:0]
		for _, e := range entries {
			if sum, ok := checksums[e.Name]; ok && sum == e.Checksum {
				continue // already the remote version, no download needed
			}
			kept = append(kept, e)
		}
		return kept
	}
	diff.Added = correct(diff.Added)
	diff.Modified = correct(diff.Modified)

	pending := make(map[string]struct{}, len(diff.Added)+len(diff.Modified))
	for _, e := range diff.Added {
		pending[e.Name] = struct{}{}
	}
	for _, e := range diff.Modified {
		pending[e.Name] = struct{}{}
	}
	deleted := make(map[string]struct{}, len(diff.Deleted))
	for _, e := range diff.Deleted {
		deleted[e.Name] = struct{}{}
	}

	remoteByName := make(map[string]manifest.FileEntry, len(remote.Entries))
	for _, e := range remote.Entries {
		remoteByName[e.Name] = e
	}

	// A file whose content drifted from its local-manifest record is local
	// corruption: re-download it if the remote manifest still has it.
	for name, sum := range checksums {
		if _, ok := deleted[name]; ok {
			continue
		}
		if _, ok := pending[name]; ok {
			continue
		}
		le, ok := localByName[name]
		if !ok || le.Checksum == sum {
			continue
		}
		if re, ok := remoteByName[name]; ok {
			diff.Added = append(diff.Added, re)
			pending[name] = struct{}{}
		}
	}
}
