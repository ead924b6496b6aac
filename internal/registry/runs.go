package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID          int64
	RunID       string
	BookID      string
	Title       string
	Status      string
	Resumed     bool
	FailedStage string
	Error       string
	CostUSD     float64
	StartedAt   time.Time
	FinishedAt  time.Time
}

// StartRun records the beginning of a pipeline invocation.
func (s *Store) StartRun(ctx context.Context, runID, bookID, title string, resumed bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	resumedInt := 0
	if resumed {
		resumedInt = 1
	}
	if err := s.execWithRetry(ctx,
		`INSERT INTO runs (run_id, book_id, title, status, resumed, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, bookID, title, StatusRunning, resumedInt, now,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun marks a run completed and records its cost.
func (s *Store) FinishRun(ctx context.Context, runID string, costUSD float64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, cost_usd = ?, finished_at = ? WHERE run_id = ?`,
		StatusCompleted, costUSD, now, runID,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// FailRun marks a run failed at the named stage.
func (s *Store) FailRun(ctx context.Context, runID, stage, message string, costUSD float64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, failed_stage = ?, error_message = ?, cost_usd = ?, finished_at = ?
         WHERE run_id = ?`,
		StatusFailed, stage, message, costUSD, now, runID,
	); err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

// List returns runs in reverse start order, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, book_id, title, status, resumed,
                failed_stage, error_message, cost_usd, started_at, finished_at
         FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Latest returns the most recent run for a book, or nil when the book
// has never been run.
func (s *Store) Latest(ctx context.Context, bookID string) (*Run, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, book_id, title, status, resumed,
                failed_stage, error_message, cost_usd, started_at, finished_at
         FROM runs WHERE book_id = ? ORDER BY id DESC LIMIT 1`, bookID)
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &run, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run         Run
		resumed     int
		failedStage sql.NullString
		errMessage  sql.NullString
		startedAt   string
		finishedAt  sql.NullString
	)
	if err := rows.Scan(&run.ID, &run.RunID, &run.BookID, &run.Title, &run.Status,
		&resumed, &failedStage, &errMessage, &run.CostUSD, &startedAt, &finishedAt); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Resumed = resumed != 0
	run.FailedStage = failedStage.String
	run.Error = errMessage.String
	if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.StartedAt = ts
	}
	if finishedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			run.FinishedAt = ts
		}
	}
	return run, nil
}
