package patch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/datallboy/gopatch/internal/domain"
	"github.com/datallboy/gopatch/internal/downloader"
	"github.com/datallboy/gopatch/internal/events"
	"github.com/datallboy/gopatch/internal/extraction"
	"github.com/datallboy/gopatch/internal/fsutil"
	"github.com/datallboy/gopatch/internal/infra/logger"
	"github.com/datallboy/gopatch/internal/manifest"
	"github.com/datallboy/gopatch/internal/validator"
)

// telemetryInterval paces download telemetry updates and download_update
// events while a transfer pass runs.
const telemetryInterval = 500 * time.Millisecond

// Options configures one patch unit.
type Options struct {
	Name         string
	AssetPath    string // bundled seed archive, optional
	LocalDir     string
	RemoteURL    string // remote directory holding the manifest and files
	ManifestName string

	ValidateWorkers int
	DownloadWorkers int
	Client          *http.Client
}

// Unit owns one synchronization target: its manifests, diff, download
// queue and per-step telemetry. It is driven through exactly one
// preprocess/process/postprocess cycle per run, though a failing phase may
// be re-invoked by the retry policy before the run advances.
//
// The unit exclusively owns its manifests and diff; no other component
// mutates them.
type Unit struct {
	name         string
	assetPath    string
	localDir     string
	remoteURL    string
	manifestName string

	bus       *events.Bus
	log       *logger.Logger
	client    *http.Client
	extractor extraction.Extractor

	validateWorkers int
	downloadWorkers int

	local  *manifest.Manifest
	remote *manifest.Manifest
	diff   *manifest.DiffInfo
	queue  []manifest.FileEntry
	dl     *downloader.Downloader

	// manifestDirty is set while the local manifest still has to be
	// replaced with the remote one, and cleared only after the persist
	// actually happened. It keeps a retried process pass from reporting
	// success on an empty queue when the previous pass moved every file
	// but failed on the manifest write itself.
	manifestDirty bool

	mu       sync.RWMutex
	size     [domain.StepCount]int64
	progress [domain.StepCount]float64
	speed    [domain.StepCount]float64
	err      string
}

func NewUnit(opts Options, bus *events.Bus, log *logger.Logger) *Unit {
	manifestName := opts.ManifestName
	if manifestName == "" {
		manifestName = "manifest.txt"
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &Unit{
		name:            opts.Name,
		assetPath:       opts.AssetPath,
		localDir:        opts.LocalDir,
		remoteURL:       strings.TrimRight(opts.RemoteURL, "/"),
		manifestName:    manifestName,
		bus:             bus,
		log:             log,
		client:          client,
		extractor:       extraction.NewZip(),
		validateWorkers: opts.ValidateWorkers,
		downloadWorkers: opts.DownloadWorkers,
	}
}

func (u *Unit) Name() string { return u.name }

func (u *Unit) Err() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.err
}

// RemoteManifest exposes the manifest fetched during preprocess.
func (u *Unit) RemoteManifest() *manifest.Manifest { return u.remote }

// Diff exposes the (validated) diff computed during preprocess.
func (u *Unit) Diff() *manifest.DiffInfo { return u.diff }

func (u *Unit) Size(s domain.Step) int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.size[s]
}

func (u *Unit) Progress(s domain.Step) float64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.progress[s]
}

func (u *Unit) Speed(s domain.Step) float64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.speed[s]
}

func (u *Unit) manifestPath() string {
	return filepath.Join(u.localDir, u.manifestName)
}

// clearErr resets the unit's failure flag. The unit, not the orchestrator,
// owns this reset, and it happens at the start of every phase call.
func (u *Unit) clearErr() {
	u.mu.Lock()
	u.err = ""
	u.mu.Unlock()
}

func (u *Unit) fail(err error) error {
	u.mu.Lock()
	u.err = err.Error()
	u.mu.Unlock()
	return err
}

func (u *Unit) setTelemetry(s domain.Step, size int64, progress, speed float64) {
	u.mu.Lock()
	if size >= 0 {
		u.size[s] = size
	}
	u.progress[s] = progress
	u.speed[s] = speed
	u.mu.Unlock()
}

// Preprocess reads the local manifest, seeding the directory from the
// bundled archive if the manifest is unreadable. With compareRemote set it
// then fetches the remote manifest, computes the diff, validates the local
// files against it and fills the download queue; without it, a readable
// local manifest is all that is required.
func (u *Unit) Preprocess(ctx context.Context, compareRemote bool) error {
	u.clearErr()

	u.local = manifest.New(u.manifestPath())
	u.local.Read(ctx)

	if u.local.Err != "" && u.assetPath != "" && fsutil.Exists(u.assetPath) {
		if err := u.extractSeed(ctx); err != nil {
			return u.fail(err)
		}
		u.local.Read(ctx)
	}

	if !compareRemote {
		// Reachable when the seed archive is missing or did not contain
		// a readable manifest.
		if u.local.Err != "" {
			return u.fail(fmt.Errorf("%w: %s", domain.ErrManifestUnreadable, u.local.Err))
		}
		return nil
	}

	// An unreadable local manifest is a legal baseline here: it just means
	// everything the remote lists is an addition.
	u.remote = manifest.New(u.remoteURL + "/" + u.manifestName)
	u.remote.Client = u.client
	u.remote.Read(ctx)
	if u.remote.Err != "" {
		return u.fail(fmt.Errorf("read remote manifest: %s", u.remote.Err))
	}

	u.diff = u.local.Compare(u.remote)

	if err := u.validate(ctx); err != nil {
		return u.fail(err)
	}

	u.queue = u.diff.Pending()
	u.manifestDirty = len(u.queue) > 0
	return nil
}

func (u *Unit) extractSeed(ctx context.Context) error {
	ok, err := u.extractor.CanExtract(u.assetPath)
	if err != nil {
		return fmt.Errorf("inspect seed %s: %w", u.assetPath, err)
	}
	if !ok {
		return fmt.Errorf("seed %s is not a %s archive", u.assetPath, u.extractor.Name())
	}

	u.bus.Notify(events.ExtractStart, u.name)

	if info, err := os.Stat(u.assetPath); err == nil {
		u.setTelemetry(domain.StepExtract, info.Size(), 0, 0)
	}

	_, err = u.extractor.Extract(ctx, u.assetPath, u.localDir, func(done, total int) {
		frac := 0.0
		if total > 0 {
			frac = float64(done) / float64(total)
		}
		u.setTelemetry(domain.StepExtract, -1, frac, 0)
		u.bus.Notify(events.ExtractUpdate, events.Progress{
			Unit: u.name, Done: int64(done), Total: int64(total), Fraction: frac,
		})
	})
	if err != nil {
		u.bus.Notify(events.ExtractFailed, events.Failure{Unit: u.name, Err: err.Error()})
		return fmt.Errorf("extract seed %s: %w", u.assetPath, err)
	}

	u.setTelemetry(domain.StepExtract, -1, 1, 0)
	u.bus.Notify(events.ExtractSucceeded, u.name)
	u.log.Info("[%s] seed archive extracted", u.name)
	return nil
}

func (u *Unit) validate(ctx context.Context) error {
	u.bus.Notify(events.ValidateStart, u.name)

	v := &validator.Validator{
		Dir:         u.localDir,
		Concurrency: u.validateWorkers,
		Ignore:      []string{u.manifestName},
		OnProgress: func(done, total int) {
			frac := 0.0
			if total > 0 {
				frac = float64(done) / float64(total)
			}
			u.setTelemetry(domain.StepValidate, int64(total), frac, 0)
			u.bus.Notify(events.ValidateUpdate, events.Progress{
				Unit: u.name, Done: int64(done), Total: int64(total), Fraction: frac,
			})
		},
	}

	dlSize, err := v.Validate(ctx, u.local, u.remote, u.diff)
	if err != nil {
		u.bus.Notify(events.ValidateFailed, events.Failure{Unit: u.name, Err: err.Error()})
		return err
	}

	u.setTelemetry(domain.StepDownload, dlSize, 0, 0)
	u.bus.Notify(events.ValidateSucceeded, u.name)
	u.log.Info("[%s] validated: %d to add, %d to modify, %d to delete (%d bytes to download)",
		u.name, len(u.diff.Added), len(u.diff.Modified), len(u.diff.Deleted), dlSize)

	u.dl = downloader.New(u.remoteURL, u.localDir, u.manifestPath(), u.log)
	u.dl.Client = u.client
	if u.downloadWorkers > 0 {
		u.dl.Concurrency = u.downloadWorkers
	}
	u.dl.SetTotal(dlSize)
	return nil
}

// Process downloads the queued files and replaces the local manifest. A
// no-op when preprocess found nothing to download. When a previous pass
// moved every file but failed on the manifest write, the retry skips the
// transfers and goes straight to the persist.
func (u *Unit) Process(ctx context.Context) error {
	u.clearErr()

	if u.dl == nil || (len(u.queue) == 0 && !u.manifestDirty) {
		return nil
	}

	u.bus.Notify(events.DownloadStart, u.name)

	var err error
	if len(u.queue) > 0 {
		stop := u.startDownloadTelemetry()
		var remaining []manifest.FileEntry
		remaining, err = u.dl.Run(ctx, u.queue, u.remote)
		stop()
		u.queue = remaining
	} else {
		err = u.dl.PersistManifest(u.remote)
	}

	if err != nil {
		u.setTelemetry(domain.StepDownload, -1, u.dl.Progress(), 0)
		u.bus.Notify(events.DownloadFailed, events.Failure{Unit: u.name, Err: err.Error()})
		return u.fail(err)
	}

	u.manifestDirty = false
	u.setTelemetry(domain.StepDownload, -1, 1, 0)
	u.bus.Notify(events.DownloadSucceeded, u.name)
	u.log.Info("[%s] download complete, local manifest replaced", u.name)
	return nil
}

func (u *Unit) startDownloadTelemetry() func() {
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(telemetryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				frac := u.dl.Progress()
				speed := u.dl.Speed()
				u.setTelemetry(domain.StepDownload, -1, frac, speed)
				u.bus.Notify(events.DownloadUpdate, events.Progress{
					Unit:     u.name,
					Done:     u.dl.TransferredBytes(),
					Total:    u.Size(domain.StepDownload),
					Fraction: frac,
					Speed:    speed,
				})
			case <-stop:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

// Postprocess removes files the diff marked deleted. The deletion runs on
// a background goroutine and is joined through a completion channel before
// the phase reports.
func (u *Unit) Postprocess(ctx context.Context) error {
	u.clearErr()

	if u.diff == nil || len(u.diff.Deleted) == 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		var firstErr error
		for _, e := range u.diff.Deleted {
			path := filepath.Join(u.localDir, filepath.FromSlash(e.Name))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				if firstErr == nil {
					firstErr = fmt.Errorf("delete %s: %w", e.Name, err)
				}
			}
		}
		done <- firstErr
	}()

	select {
	case <-ctx.Done():
		return u.fail(ctx.Err())
	case err := <-done:
		if err != nil {
			return u.fail(err)
		}
	}

	u.log.Info("[%s] removed %d deleted files", u.name, len(u.diff.Deleted))
	return nil
}
