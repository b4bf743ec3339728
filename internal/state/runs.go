package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/grindloop/grind/pkg/models"
)

// OutcomeRunning marks a run still in flight. Terminal values mirror
// models.OutcomeKind.
const OutcomeRunning = "running"

// Run is one recorded loop invocation.
type Run struct {
	ID                string     `json:"id"`
	Prompt            string     `json:"prompt"`
	CompletionPromise string     `json:"completion_promise"`
	Model             string     `json:"model"`
	MaxIterations     int        `json:"max_iterations"`
	CostCeiling       float64    `json:"cost_ceiling"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	Outcome           string     `json:"outcome"`
	Iterations        int        `json:"iterations"`
	Spend             float64    `json:"spend"`
	Error             string     `json:"error"`
}

// CreateRun records the start of a run.
func (db *DB) CreateRun(r *Run) error {
	if r.Outcome == "" {
		r.Outcome = OutcomeRunning
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, prompt, completion_promise, model, max_iterations, cost_ceiling, started_at, outcome, iterations, spend, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Prompt, r.CompletionPromise, r.Model, r.MaxIterations, r.CostCeiling,
		formatTime(r.StartedAt), r.Outcome, r.Iterations, r.Spend, r.Error)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil when the run is unknown.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, prompt, completion_promise, model, max_iterations, cost_ceiling, started_at, finished_at, outcome, iterations, spend, error
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt, errMsg sql.NullString
	err := row.Scan(&r.ID, &r.Prompt, &r.CompletionPromise, &r.Model, &r.MaxIterations,
		&r.CostCeiling, &startedAt, &finishedAt, &r.Outcome, &r.Iterations, &r.Spend, &errMsg)
	if err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	r.Error = errMsg.String
	return &r, nil
}

// ListRuns lists runs newest first. A non-positive limit returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, prompt, completion_promise, model, max_iterations, cost_ceiling, started_at, finished_at, outcome, iterations, spend, error
		FROM runs ORDER BY started_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.Query(query)
	}
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

// ActiveRun returns the most recent run still in flight, if any.
func (db *DB) ActiveRun() (*Run, error) {
	row := db.QueryRow(`
		SELECT id, prompt, completion_promise, model, max_iterations, cost_ceiling, started_at, finished_at, outcome, iterations, spend, error
		FROM runs WHERE outcome = ? ORDER BY started_at DESC LIMIT 1
	`, OutcomeRunning)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active run: %w", err)
	}
	return r, nil
}

// FinishRun marks a run terminal with its outcome.
func (db *DB) FinishRun(id string, outcome models.OutcomeKind, iterations int, spend float64, errMsg string) error {
	_, err := db.Exec(`
		UPDATE runs SET outcome = ?, iterations = ?, spend = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(outcome), iterations, spend, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordIteration appends one iteration row and rolls the run's
// progress counters forward so a watching `grind status` sees them.
func (db *DB) RecordIteration(runID string, rec models.IterationRecord) error {
	return db.Transaction(func(tx *sql.Tx) error {
		detected := 0
		if rec.CompletionDetected {
			detected = 1
		}
		_, err := tx.Exec(`
			INSERT INTO iterations (run_id, idx, model, response, cost_delta, completion_detected, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, rec.Index, rec.Model, rec.ResponseReceived, rec.CostDelta, detected,
			formatTime(rec.StartedAt), formatTime(rec.FinishedAt))
		if err != nil {
			return fmt.Errorf("insert iteration: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE runs SET iterations = ?, spend = spend + ?, model = ? WHERE id = ?
		`, rec.Index+1, rec.CostDelta, rec.Model, runID)
		if err != nil {
			return fmt.Errorf("update run progress: %w", err)
		}
		return nil
	})
}

// ListIterations returns a run's iteration records in order.
func (db *DB) ListIterations(runID string) ([]models.IterationRecord, error) {
	rows, err := db.Query(`
		SELECT idx, model, response, cost_delta, completion_detected, started_at, finished_at
		FROM iterations WHERE run_id = ? ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	var recs []models.IterationRecord
	for rows.Next() {
		var rec models.IterationRecord
		var detected int
		var startedAt, finishedAt string
		if err := rows.Scan(&rec.Index, &rec.Model, &rec.ResponseReceived, &rec.CostDelta,
			&detected, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		rec.CompletionDetected = detected != 0
		rec.StartedAt, _ = parseTime(startedAt)
		rec.FinishedAt, _ = parseTime(finishedAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
