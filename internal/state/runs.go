package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/driver733/qulice/internal/validation"
)

// Run is a persisted quality gate run.
type Run struct {
	ID          string     `json:"id"`
	Dir         string     `json:"dir"`
	State       string     `json:"state"`
	FailedIndex int        `json:"failed_index"`
	Skipped     bool       `json:"skipped"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
	Entries     []RunEntry `json:"entries,omitempty"`
}

// RunEntry is one validator's outcome within a Run.
type RunEntry struct {
	Index     int           `json:"index"`
	Validator string        `json:"validator"`
	Outcome   string        `json:"outcome"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// FromReport converts a finished report for the project at dir.
func FromReport(dir string, r *validation.Report) *Run {
	run := &Run{
		ID:          r.ID,
		Dir:         dir,
		State:       string(r.State),
		FailedIndex: r.FailedIndex,
		Skipped:     r.Skipped,
		StartedAt:   r.Started,
		FinishedAt:  r.Finished,
	}
	for _, e := range r.Entries {
		entry := RunEntry{
			Index:     e.Index,
			Validator: e.Validator,
			Outcome:   string(e.Outcome),
			Duration:  e.Duration,
		}
		if e.Err != nil {
			entry.Message = validation.Describe(e.Err)
		}
		run.Entries = append(run.Entries, entry)
	}
	return run
}

// SaveRun stores a run and its entries.
func (db *DB) SaveRun(r *Run) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, dir, state, failed_index, skipped, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Dir, r.State, r.FailedIndex, boolToInt(r.Skipped), formatTime(r.StartedAt), formatTime(r.FinishedAt))
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}

		for _, e := range r.Entries {
			_, err := tx.Exec(`
				INSERT INTO run_entries (run_id, idx, validator, outcome, message, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?)
			`, r.ID, e.Index, e.Validator, e.Outcome, e.Message, e.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("save run entry %d: %w", e.Index, err)
			}
		}
		return nil
	})
}

// GetRun retrieves a run with its entries. It returns nil, nil when no run
// has the given ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, dir, state, failed_index, skipped, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	entries, err := db.runEntries(id)
	if err != nil {
		return nil, err
	}
	r.Entries = entries
	return r, nil
}

// ListRuns returns the most recent runs first, without entries. A limit of
// zero or less returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT id, dir, state, failed_index, skipped, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// PurgeRuns deletes all but the keep most recent runs and returns how many
// were deleted.
func (db *DB) PurgeRuns(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	var deleted int64
	err := db.Transaction(func(tx *sql.Tx) error {
		const stale = `
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT -1 OFFSET ?
		`
		if _, err := tx.Exec(`DELETE FROM run_entries WHERE run_id IN (`+stale+`)`, keep); err != nil {
			return fmt.Errorf("purge run entries: %w", err)
		}
		result, err := tx.Exec(`DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		deleted, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return deleted, err
}

func (db *DB) runEntries(runID string) ([]RunEntry, error) {
	rows, err := db.Query(`
		SELECT idx, validator, outcome, message, duration_ms
		FROM run_entries WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run entries: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var message sql.NullString
		var durationMS int64
		if err := rows.Scan(&e.Index, &e.Validator, &e.Outcome, &message, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run entry: %w", err)
		}
		e.Message = message.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var skipped int
	var startedAt, finishedAt string
	if err := s.Scan(&r.ID, &r.Dir, &r.State, &r.FailedIndex, &skipped, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.Skipped = skipped != 0
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt, _ = parseTime(finishedAt)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
