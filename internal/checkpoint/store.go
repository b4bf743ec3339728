// Package checkpoint persists in-flight run progress so an interrupted
// run can be resumed. The store is written on every iteration and
// cleared when a run reaches a terminal outcome.
package checkpoint

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// StatusRunning marks a checkpoint whose run is still in flight. Any
// other status means the run reached a terminal outcome.
const StatusRunning = "running"

// Checkpoint captures the resumable state of a run.
type Checkpoint struct {
	RunID             string
	Prompt            string
	CompletionPromise string
	Model             string
	Iteration         int
	TotalCost         float64
	Status            string
	StartedAt         time.Time
	UpdatedAt         time.Time
}

// Store manages run checkpoints for crash recovery.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the checkpoint database path for a repository.
func DefaultPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".grind", "checkpoint.db")
}

// NewStore opens a checkpoint store at the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Create table if not exists
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT PRIMARY KEY,
			prompt TEXT,
			completion_promise TEXT,
			model TEXT,
			iteration INT,
			total_cost REAL,
			status TEXT,
			started_at DATETIME,
			updated_at DATETIME
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Create records the start of a run.
func (s *Store) Create(runID, prompt, completionPromise, model string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		RunID:             runID,
		Prompt:            prompt,
		CompletionPromise: completionPromise,
		Model:             model,
		Iteration:         0,
		TotalCost:         0,
		Status:            StatusRunning,
		StartedAt:         now,
		UpdatedAt:         now,
	}

	_, err := s.db.Exec(`
		INSERT INTO checkpoints (run_id, prompt, completion_promise, model, iteration, total_cost, status, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cp.RunID, cp.Prompt, cp.CompletionPromise, cp.Model, cp.Iteration, cp.TotalCost, cp.Status, cp.StartedAt, cp.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert checkpoint: %w", err)
	}

	return cp, nil
}

// UpdateProgress records the iteration counter, spend, and active model
// after a completed iteration.
func (s *Store) UpdateProgress(runID string, iteration int, totalCost float64, model string) error {
	result, err := s.db.Exec(`
		UPDATE checkpoints
		SET iteration = ?, total_cost = ?, model = ?, updated_at = ?
		WHERE run_id = ?
	`, iteration, totalCost, model, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("checkpoint not found: %s", runID)
	}

	return nil
}

// MarkStatus records a run's terminal outcome.
func (s *Store) MarkStatus(runID, status string) error {
	result, err := s.db.Exec(`
		UPDATE checkpoints
		SET status = ?, updated_at = ?
		WHERE run_id = ?
	`, status, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("mark status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("checkpoint not found: %s", runID)
	}

	return nil
}

// Get retrieves a checkpoint by run ID.
func (s *Store) Get(runID string) (*Checkpoint, error) {
	row := s.db.QueryRow(`
		SELECT run_id, prompt, completion_promise, model, iteration, total_cost, status, started_at, updated_at
		FROM checkpoints
		WHERE run_id = ?
	`, runID)

	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checkpoint not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	return cp, nil
}

// Latest returns the most recently updated in-flight checkpoint, or nil
// when every run finished cleanly.
func (s *Store) Latest() (*Checkpoint, error) {
	row := s.db.QueryRow(`
		SELECT run_id, prompt, completion_promise, model, iteration, total_cost, status, started_at, updated_at
		FROM checkpoints
		WHERE status = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, StatusRunning)

	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	return cp, nil
}

// List returns all checkpoints, most recently updated first.
func (s *Store) List() ([]Checkpoint, error) {
	rows, err := s.db.Query(`
		SELECT run_id, prompt, completion_promise, model, iteration, total_cost, status, started_at, updated_at
		FROM checkpoints
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cps = append(cps, *cp)
	}
	return cps, rows.Err()
}

// Delete removes a checkpoint by run ID.
func (s *Store) Delete(runID string) error {
	result, err := s.db.Exec(`DELETE FROM checkpoints WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("checkpoint not found: %s", runID)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var cp Checkpoint
	err := row.Scan(
		&cp.RunID,
		&cp.Prompt,
		&cp.CompletionPromise,
		&cp.Model,
		&cp.Iteration,
		&cp.TotalCost,
		&cp.Status,
		&cp.StartedAt,
		&cp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}
