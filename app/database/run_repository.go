package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultRunLimit = 20

var _ RunRepository = (*SQLiteRunRepository)(nil)

const runColumns = `id, origin, source_type, source, status, records, included, rejected,
	output_bytes, error, started_at, finished_at`

// SQLiteRunRepository stores run history in SQLite.
type SQLiteRunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *SQLiteRunRepository {
	return &SQLiteRunRepository{db: db}
}

func (r *SQLiteRunRepository) CreateRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, origin, source_type, source, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Origin, run.SourceType, run.Source, string(run.Status), run.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

func (r *SQLiteRunRepository) FinishRun(ctx context.Context, id string, outcome RunOutcome) error {
	if outcome.FinishedAt.IsZero() {
		outcome.FinishedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, records = ?, included = ?, rejected = ?, output_bytes = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(outcome.Status), outcome.Records, outcome.Included, outcome.Rejected,
		outcome.OutputBytes, outcome.Error, outcome.FinishedAt.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

func (r *SQLiteRunRepository) AddRejections(ctx context.Context, runID string, rejections []Rejection) error {
	if len(rejections) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO rejections (run_id, record_index, vehicle_id, reason)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rejection insert: %w", err)
	}
	defer stmt.Close()

	for _, rej := range rejections {
		if _, err := stmt.ExecContext(ctx, runID, rej.RecordIndex, rej.VehicleID, rej.Reason); err != nil {
			return fmt.Errorf("failed to store rejection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rejections: %w", err)
	}

	return nil
}

// GetRun returns nil when no run has the given id.
func (r *SQLiteRunRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// GetLastRun returns the most recent run with the given status, or the most
// recent run of any status when status is empty.
func (r *SQLiteRunRepository) GetLastRun(ctx context.Context, status RunStatus) (*Run, error) {
	var row *sql.Row
	if status == "" {
		row = r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	} else {
		row = r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, string(status))
	}

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}

	return run, nil
}

func (r *SQLiteRunRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func (r *SQLiteRunRepository) ListRejections(ctx context.Context, runID string) ([]Rejection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, record_index, vehicle_id, reason
		FROM rejections
		WHERE run_id = ?
		ORDER BY record_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	defer rows.Close()

	var rejections []Rejection
	for rows.Next() {
		var rej Rejection
		if err := rows.Scan(&rej.RunID, &rej.RecordIndex, &rej.VehicleID, &rej.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		rejections = append(rejections, rej)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rejections: %w", err)
	}

	return rejections, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		status     string
		startedAt  int64
		finishedAt sql.NullInt64
	)

	err := s.Scan(&run.ID, &run.Origin, &run.SourceType, &run.Source, &status,
		&run.Records, &run.Included, &run.Rejected, &run.OutputBytes, &run.Error,
		&startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	run.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		run.FinishedAt = &t
	}

	return &run, nil
}
