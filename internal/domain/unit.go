package domain

import (
	"context"
	"time"

	"github.com/datallboy/gopatch/internal/manifest"
)

// Unit is one synchronization target driven through the three phases.
// A phase returns its error for control flow, and the same error stays
// readable on the unit via Err until the next phase call resets it. The
// unit itself owns that reset; the orchestrator only polls.
type Unit interface {
	Name() string
	Err() string

	// Preprocess prepares local state. When compareRemote is set it also
	// fetches the remote manifest, diffs and validates; otherwise it only
	// makes sure a readable local manifest exists.
	Preprocess(ctx context.Context, compareRemote bool) error
	Process(ctx context.Context) error
	Postprocess(ctx context.Context) error

	Size(Step) int64
	Progress(Step) float64
	Speed(Step) float64
}

// Differ is implemented by units that carry a manifest diff. The
// orchestrator uses it to assemble the final patch snapshot.
type Differ interface {
	RemoteManifest() *manifest.Manifest
	Diff() *manifest.DiffInfo
}

// Handler supplies everything the orchestrator does not decide itself:
// whether an update is needed, which units to drive, and the retry policy.
// The orchestrator never constructs units.
type Handler interface {
	// Check reports whether a binary update and/or a patch update is needed.
	Check(ctx context.Context) (needBinary, needPatch bool, err error)

	// Retry decides whether a failed phase attempt may be re-run and how
	// long to wait first. attempt is 1 on the first failure of a unit's
	// phase and increments only while the same unit keeps being retried.
	Retry(phase Phase, unit Unit, attempt int) (allow bool, wait time.Duration)

	BinaryUnit() Unit
	PatchUnits() []Unit
}
