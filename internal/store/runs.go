package store

import (
	"database/sql"
	"time"

	"github.com/datallboy/gopatch/internal/domain"
)

// Run is one journaled update run.
type Run struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	State      domain.State `json:"state"`
	Error      string       `json:"error,omitempty"`
}

// PhaseRecord is one journaled phase outcome.
type PhaseRecord struct {
	RunID      string    `json:"run_id"`
	Unit       string    `json:"unit"`
	Phase      string    `json:"phase"`
	Attempts   int       `json:"attempts"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RunStarted implements core.Journal.
func (s *PersistentStore) RunStarted(id string, startedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, state) VALUES (?, ?, ?)`,
		id, startedAt, string(domain.StateChecking),
	)
	return err
}

// PhaseRecorded implements core.Journal.
func (s *PersistentStore) PhaseRecorded(runID, unit string, phase domain.Phase, attempts int, success bool, errMsg string) error {
	_, err := s.db.Exec(
		`INSERT INTO run_phases (run_id, unit, phase, attempts, success, error) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, unit, phase.String(), attempts, success, errMsg,
	)
	return err
}

// RunFinished implements core.Journal.
func (s *PersistentStore) RunFinished(id string, state domain.State, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, state = ?, error = ? WHERE id = ?`,
		time.Now(), string(state), errMsg, id,
	)
	return err
}

// GetRuns returns the most recent runs, newest first.
func (s *PersistentStore) GetRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, state, error FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var finished sql.NullTime
		var state string
		if err := rows.Scan(&run.ID, &run.StartedAt, &finished, &state, &run.Error); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		run.State = domain.State(state)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunPhases returns the phase records of one run in recorded order.
func (s *PersistentStore) GetRunPhases(runID string) ([]*PhaseRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, unit, phase, attempts, success, error, recorded_at
		 FROM run_phases WHERE run_id = ? ORDER BY recorded_at`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*PhaseRecord
	for rows.Next() {
		rec := &PhaseRecord{}
		if err := rows.Scan(&rec.RunID, &rec.Unit, &rec.Phase, &rec.Attempts, &rec.Success, &rec.Error, &rec.RecordedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
