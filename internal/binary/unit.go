// Package binary holds the binary-package updater stub. The real installer
// is an external collaborator; this unit only satisfies the phase contract
// so the orchestrator can drive a binary-update run end to end.
package binary

import (
	"context"
	"sync"

	"github.com/datallboy/gopatch/internal/domain"
	"github.com/datallboy/gopatch/internal/fsutil"
	"github.com/datallboy/gopatch/internal/infra/logger"
)

// Unit is a trivial implementation of the unit capability set for binary
// updates. Preprocess ensures the install directory exists; process and
// postprocess are handed off to the platform installer out of scope here.
type Unit struct {
	name       string
	packageURL string
	installDir string
	log        *logger.Logger

	mu  sync.RWMutex
	err string
}

func NewUnit(packageURL, installDir string, log *logger.Logger) *Unit {
	return &Unit{
		name:       "binary",
		packageURL: packageURL,
		installDir: installDir,
		log:        log,
	}
}

func (u *Unit) Name() string { return u.name }

func (u *Unit) Err() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.err
}

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

func (u *Unit) Preprocess(ctx context.Context, compareRemote bool) error {
	u.clearErr()
	if u.installDir == "" {
		return nil
	}
	if err := fsutil.EnsureDir(u.installDir); err != nil {
		return u.fail(err)
	}
	return nil
}

func (u *Unit) Process(ctx context.Context) error {
	u.clearErr()
	u.log.Info("binary update delegated to platform installer: %s", u.packageURL)
	return nil
}

func (u *Unit) Postprocess(ctx context.Context) error {
	u.clearErr()
	return nil
}

func (u *Unit) Size(domain.Step) int64       { return 0 }
func (u *Unit) Progress(domain.Step) float64 { return 0 }
func (u *Unit) Speed(domain.Step) float64    { return 0 }
