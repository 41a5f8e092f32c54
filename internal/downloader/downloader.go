package downloader

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/datallboy/gopatch/internal/fsutil"
	"github.com/datallboy/gopatch/internal/infra/logger"
	"github.com/datallboy/gopatch/internal/manifest"
)

// DefaultConcurrency is the number of in-flight transfers. More is not
// better past a point dictated by bandwidth and memory.
const DefaultConcurrency = 5

// Downloader fetches a queue of remote files into a local directory under
// bounded concurrency. The next file to start is picked uniformly at random
// from the remaining queue, which spreads large and small files across the
// slots instead of letting one huge file block a FIFO head.
type Downloader struct {
	RemoteDir    string // base URL of the remote file store
	LocalDir     string
	ManifestPath string // local manifest location, replaced on success
	Concurrency  int
	Client       *http.Client
	Logger       *logger.Logger

	totalSize atomic.Int64
	completed atomic.Int64
	highWater atomic.Int64
	meter     *Meter

	mu      sync.Mutex
	partial map[string]*atomic.Int64
}

func New(remoteDir, localDir, manifestPath string, log *logger.Logger) *Downloader {
	return &Downloader{
		RemoteDir:    remoteDir,
		LocalDir:     localDir,
		ManifestPath: manifestPath,
		Concurrency:  DefaultConcurrency,
		Client:       http.DefaultClient,
		Logger:       log,
		meter:        NewMeter(DefaultSamplePeriod),
		partial:      make(map[string]*atomic.Int64),
	}
}

// SetTotal fixes the byte size this download is measured against: the sum
// of the revised added+modified set, set once after validation.
func (d *Downloader) SetTotal(n int64) {
	d.totalSize.Store(n)
}

// FileURL returns the content-addressed fetch URL for an entry. The
// checksum suffix lets a CDN cache serve the exact version requested; the
// shape is fixed for compatibility with existing remote stores.
func (d *Downloader) FileURL(e manifest.FileEntry) string {
	return fmt.Sprintf("%s/%s@%s", strings.TrimRight(d.RemoteDir, "/"), e.Name, e.Checksum)
}

type result struct {
	entry manifest.FileEntry
	err   error
}

// Run downloads the queue. A failed transfer is pushed back into the
// pending queue rather than failing the pass outright, but it also sets a
// sticky failure flag: no new transfers start after the first error, and
// in-flight ones are drained before the pass surfaces the failure.
//
// On success the remote manifest is persisted to ManifestPath (local state
// now equals remote state) and the returned queue is empty. On failure the
// remaining queue and a concatenation of every per-file error come back,
// and nothing is persisted.
func (d *Downloader) Run(ctx context.Context, queue []manifest.FileEntry, remote *manifest.Manifest) ([]manifest.FileEntry, error) {
	pending := make([]manifest.FileEntry, len(queue))
	copy(pending, queue)

	if err := fsutil.EnsureDir(d.LocalDir); err != nil {
		return pending, err
	}

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	// Files already landed in earlier passes shrink the pending pool, so
	// the recomputed starting point can be below the last pass's high
	// water mark. That one-time rollback is expected on resume.
	var pendingBytes int64
	for _, e := range pending {
		pendingBytes += e.Size
	}
	base := d.totalSize.Load() - pendingBytes
	if base < 0 {
		base = 0
	}
	if prev := d.highWater.Load(); prev > base && d.Logger != nil {
		d.Logger.Warn("download progress recomputed from %d to %d bytes on resume", prev, base)
	}
	d.completed.Store(base)
	d.highWater.Store(base)
	d.meter.Reset()

	results := make(chan result)
	inflight := 0
	failed := false
	var errs []string

	for {
		for !failed && inflight < concurrency && len(pending) > 0 {
			i := rand.IntN(len(pending))
			entry := pending[i]
			pending = append(pending[:i], pending[i+1:]...)
			inflight++
			go func(e manifest.FileEntry) {
				results <- result{entry: e, err: d.fetch(ctx, e)}
			}(entry)
		}
		if inflight == 0 {
			break
		}

		res := <-results
		inflight--
		if res.err != nil {
			failed = true
			errs = append(errs, fmt.Sprintf("%s: %v", res.entry.Name, res.err))
			pending = append(pending, res.entry)
			if d.Logger != nil {
				d.Logger.Warn("transfer failed, requeued %s: %v", res.entry.Name, res.err)
			}
			continue
		}
		d.completed.Add(res.entry.Size)
	}

	if failed {
		return pending, errors.New(strings.Join(errs, "; "))
	}

	if err := d.PersistManifest(remote); err != nil {
		return pending, err
	}
	return nil, nil
}

// PersistManifest atomically replaces the local manifest with the remote
// state. Run calls it after a clean pass; a caller whose transfers all
// landed on an earlier pass but whose persist failed retries it directly.
func (d *Downloader) PersistManifest(remote *manifest.Manifest) error {
	if err := fsutil.AtomicWriteFile(d.ManifestPath, []byte(remote.Serialize())); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}
	return nil
}

// fetch streams one file to a .part sibling, verifies its checksum against
// the manifest entry and renames it into place.
func (d *Downloader) fetch(ctx context.Context, e manifest.FileEntry) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.FileURL(e), nil)
	if err != nil {
		return err
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	counter := d.registerPartial(e.Name)
	defer d.releasePartial(e.Name)

	target := filepath.Join(d.LocalDir, filepath.FromSlash(e.Name))
	if err := fsutil.EnsureDir(filepath.Dir(target)); err != nil {
		return err
	}

	part := target + ".part"
	f, err := os.Create(part)
	if err != nil {
		return err
	}

	h := md5.New()
	_, err = io.Copy(io.MultiWriter(f, h, counter), resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return err
	}

	if sum := hex.EncodeToString(h.Sum(nil)); sum != e.Checksum {
		os.Remove(part)
		return fmt.Errorf("checksum mismatch: got %s, want %s", sum, e.Checksum)
	}

	return fsutil.MoveFile(part, target)
}

type countingWriter struct {
	n *atomic.Int64
}

func (w countingWriter) Write(p []byte) (int, error) {
	w.n.Add(int64(len(p)))
	return len(p), nil
}

func (d *Downloader) registerPartial(name string) countingWriter {
	n := new(atomic.Int64)
	d.mu.Lock()
	d.partial[name] = n
	d.mu.Unlock()
	return countingWriter{n: n}
}

func (d *Downloader) releasePartial(name string) {
	d.mu.Lock()
	delete(d.partial, name)
	d.mu.Unlock()
}

// TransferredBytes is bytes fully written for completed transfers plus the
// partial bytes of everything in flight.
func (d *Downloader) TransferredBytes() int64 {
	b := d.completed.Load()
	d.mu.Lock()
	for _, n := range d.partial {
		b += n.Load()
	}
	d.mu.Unlock()
	return b
}

// Progress is the completed fraction of the pass, guarded against
// regressing when an in-flight transfer fails and its partial bytes vanish.
func (d *Downloader) Progress() float64 {
	total := d.totalSize.Load()
	if total <= 0 {
		return 0
	}

	b := d.TransferredBytes()
	for {
		hw := d.highWater.Load()
		if b <= hw {
			b = hw
			break
		}
		if d.highWater.CompareAndSwap(hw, b) {
			break
		}
	}

	p := float64(b) / float64(total)
	if p > 1 {
		p = 1
	}
	return p
}

// Speed samples the transfer rate in bytes per second.
func (d *Downloader) Speed() float64 {
	return d.meter.Sample(d.TransferredBytes())
}
