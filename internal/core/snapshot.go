package core

import "github.com/datallboy/gopatch/internal/domain"

// StepStatus is one step's telemetry in a snapshot.
type StepStatus struct {
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
	Speed    float64 `json:"speed"`
}

// UnitStatus is one unit's view in a snapshot.
type UnitStatus struct {
	Name  string                `json:"name"`
	Err   string                `json:"error,omitempty"`
	Steps map[string]StepStatus `json:"steps"`
}

// RunSnapshot is a point-in-time view of the active run for observers.
type RunSnapshot struct {
	ID    string       `json:"id"`
	State domain.State `json:"state"`
	Units []UnitStatus `json:"units"`
}

// Snapshot captures the current run state. Safe to call concurrently with
// Run; unit telemetry is read through the units' own locks.
func (c *Core) Snapshot() RunSnapshot {
	c.mu.RLock()
	runID := c.runID
	state := c.state
	units := c.units
	c.mu.RUnlock()

	snap := RunSnapshot{ID: runID, State: state}
	for _, u := range units {
		us := UnitStatus{
			Name:  u.Name(),
			Err:   u.Err(),
			Steps: make(map[string]StepStatus, int(domain.StepCount)),
		}
		for s := domain.Step(0); s < domain.StepCount; s++ {
			us.Steps[s.String()] = StepStatus{
				Size:     u.Size(s),
				Progress: u.Progress(s),
				Speed:    u.Speed(s),
			}
		}
		snap.Units = append(snap.Units, us)
	}
	return snap
}
