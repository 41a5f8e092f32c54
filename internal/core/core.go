package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/gopatch/internal/domain"
	"github.com/datallboy/gopatch/internal/events"
	"github.com/datallboy/gopatch/internal/infra/logger"
	"github.com/datallboy/gopatch/internal/manifest"
)

// Journal records run history. Implemented by the sqlite store; a nil
// journal disables recording.
type Journal interface {
	RunStarted(id string, startedAt time.Time) error
	PhaseRecorded(runID, unit string, phase domain.Phase, attempts int, success bool, errMsg string) error
	RunFinished(id string, state domain.State, errMsg string) error
}

var phases = []domain.Phase{domain.PhasePreprocess, domain.PhaseProcess, domain.PhasePostprocess}

// Core drives the handler's units through the three phases. Phases are
// globally serialized across the unit list: every unit finishes preprocess
// before any unit starts process. The handler owns all retry decisions;
// the core enforces no maximum of its own.
type Core struct {
	handler domain.Handler
	bus     *events.Bus
	log     *logger.Logger
	journal Journal

	mu    sync.RWMutex
	runID string
	state domain.State
	units []domain.Unit
}

func New(handler domain.Handler, bus *events.Bus, log *logger.Logger) *Core {
	return &Core{
		handler: handler,
		bus:     bus,
		log:     log,
		state:   domain.StateIdle,
	}
}

// SetJournal wires a run journal. Must be called before Run.
func (c *Core) SetJournal(j Journal) { c.journal = j }

func (c *Core) setState(s domain.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Core) setUnits(units []domain.Unit) {
	c.mu.Lock()
	c.units = units
	c.mu.Unlock()
}

// Run executes one full update cycle. On success the update_finish event
// has fired; on abort (retry denied, check failure, cancellation) it has
// not, and the error describes the failing unit and phase.
func (c *Core) Run(ctx context.Context) error {
	runID := ksuid.New().String()
	c.mu.Lock()
	c.runID = runID
	c.units = nil
	c.mu.Unlock()

	c.setState(domain.StateChecking)
	c.journalRunStarted(runID)
	c.bus.Notify(events.UpdateStart, runID)

	needBinary, needPatch, err := c.handler.Check(ctx)
	if err != nil {
		return c.abort(runID, fmt.Errorf("update check: %w", err))
	}

	switch {
	case needBinary:
		err = c.runBinary(ctx, runID)
	case needPatch:
		err = c.runPatch(ctx, runID)
	default:
		c.setState(domain.StateNoUpdate)
		c.log.Info("no update needed")
		c.bus.Notify(events.UpdateFinish, runID)
	}
	if err != nil {
		return c.abort(runID, err)
	}

	c.setState(domain.StateFinished)
	c.journalRunFinished(runID, domain.StateFinished, "")
	return nil
}

func (c *Core) abort(runID string, err error) error {
	c.setState(domain.StateFailed)
	c.log.Error("update run %s aborted: %v", runID, err)
	c.journalRunFinished(runID, domain.StateFailed, err.Error())
	return err
}

func (c *Core) runBinary(ctx context.Context, runID string) error {
	c.setState(domain.StateBinaryUpdate)
	c.bus.Notify(events.BinaryUpdateStart, runID)

	unit := c.handler.BinaryUnit()
	if unit == nil {
		c.log.Warn("binary update requested but no binary unit supplied, skipping")
		c.bus.Notify(events.UpdateFinish, runID)
		return nil
	}
	c.setUnits([]domain.Unit{unit})

	for _, phase := range phases {
		if err := c.runPhase(ctx, runID, phase, []domain.Unit{unit}, false); err != nil {
			return err
		}
	}

	c.bus.Notify(events.BinaryUpdateFinish, runID)
	c.bus.Notify(events.UpdateFinish, runID)
	return nil
}

func (c *Core) runPatch(ctx context.Context, runID string) error {
	c.setState(domain.StatePatchUpdate)
	c.bus.Notify(events.PatchUpdateStart, runID)

	units := c.handler.PatchUnits()
	c.setUnits(units)

	if len(units) == 0 {
		c.bus.Notify(events.PatchUpdateFinish, map[*manifest.Manifest]*manifest.DiffInfo{})
		c.bus.Notify(events.UpdateFinish, runID)
		return nil
	}

	for _, phase := range phases {
		if err := c.runPhase(ctx, runID, phase, units, true); err != nil {
			return err
		}
	}

	snapshot := make(map[*manifest.Manifest]*manifest.DiffInfo, len(units))
	for _, u := range units {
		if d, ok := u.(domain.Differ); ok {
			snapshot[d.RemoteManifest()] = d.Diff()
		}
	}
	c.bus.Notify(events.PatchUpdateFinish, snapshot)
	c.bus.Notify(events.UpdateFinish, runID)
	return nil
}

// runPhase walks the unit list with an explicit cursor. A unit's failure
// re-runs the same unit after the handler-granted wait; the attempt
// counter resets to 1 whenever the cursor moves to a different unit. A
// denied retry aborts the entire run.
func (c *Core) runPhase(ctx context.Context, runID string, phase domain.Phase, units []domain.Unit, compareRemote bool) error {
	for _, unit := range units {
		attempt := 1
		for {
			err := c.invoke(ctx, phase, unit, compareRemote)
			if err == nil {
				c.journalPhase(runID, unit.Name(), phase, attempt, true, "")
				break
			}

			c.log.Error("unit %s: %s failed (attempt %d): %v", unit.Name(), phase, attempt, err)

			allow, wait := c.handler.Retry(phase, unit, attempt)
			if !allow {
				c.journalPhase(runID, unit.Name(), phase, attempt, false, err.Error())
				return fmt.Errorf("unit %s: %s: %w: %v", unit.Name(), phase, domain.ErrRetryDenied, err)
			}
			attempt++

			select {
			case <-ctx.Done():
				c.journalPhase(runID, unit.Name(), phase, attempt, false, ctx.Err().Error())
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return nil
}

func (c *Core) invoke(ctx context.Context, phase domain.Phase, unit domain.Unit, compareRemote bool) error {
	switch phase {
	case domain.PhasePreprocess:
		return unit.Preprocess(ctx, compareRemote)
	case domain.PhaseProcess:
		return unit.Process(ctx)
	default:
		return unit.Postprocess(ctx)
	}
}

func (c *Core) journalRunStarted(runID string) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RunStarted(runID, time.Now()); err != nil {
		c.log.Warn("journal: record run start: %v", err)
	}
}

func (c *Core) journalPhase(runID, unit string, phase domain.Phase, attempts int, success bool, errMsg string) {
	if c.journal == nil {
		return
	}
	if err := c.journal.PhaseRecorded(runID, unit, phase, attempts, success, errMsg); err != nil {
		c.log.Warn("journal: record phase: %v", err)
	}
}

func (c *Core) journalRunFinished(runID string, state domain.State, errMsg string) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RunFinished(runID, state, errMsg); err != nil {
		c.log.Warn("journal: record run finish: %v", err)
	}
}
