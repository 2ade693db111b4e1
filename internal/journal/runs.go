package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RunRecord is one journaled scenario run.
type RunRecord struct {
	ID        int64
	Scenario  string
	Pass      bool
	Steps     int
	Errors    []string
	StartedAt time.Time
	Elapsed   time.Duration
}

// WriteRun inserts a run record and returns its assigned ID.
// Errors are serialized to JSON; timestamps are stored in UTC RFC 3339.
func (j *Journal) WriteRun(ctx context.Context, rec RunRecord) (int64, error) {
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return 0, fmt.Errorf("write run: marshal errors: %w", err)
	}

	result, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(scenario, pass, steps, errors, started_at, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.Scenario,
		rec.Pass,
		rec.Steps,
		string(errorsJSON),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write run: last insert id: %w", err)
	}
	return id, nil
}

// ListRuns returns runs in reverse chronological order. scenario narrows
// the listing to one scenario name; empty lists all. limit caps the result
// count; 0 means no cap.
func (j *Journal) ListRuns(ctx context.Context, scenario string, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, scenario, pass, steps, errors, started_at, elapsed_ms
		FROM runs
	`
	args := []any{}
	if scenario != "" {
		query += " WHERE scenario = ?"
		args = append(args, scenario)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// LastRun returns the most recent run for the named scenario.
// Returns sql.ErrNoRows when the scenario has never been journaled.
func (j *Journal) LastRun(ctx context.Context, scenario string) (RunRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, scenario, pass, steps, errors, started_at, elapsed_ms
		FROM runs
		WHERE scenario = ?
		ORDER BY id DESC
		LIMIT 1
	`, scenario)
	if err != nil {
		return RunRecord{}, fmt.Errorf("last run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return RunRecord{}, fmt.Errorf("last run: %w", err)
		}
		return RunRecord{}, sql.ErrNoRows
	}
	rec, err := scanRun(rows)
	if err != nil {
		return RunRecord{}, fmt.Errorf("last run: %w", err)
	}
	return rec, nil
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var (
		rec        RunRecord
		errorsJSON string
		startedAt  string
		elapsedMS  int64
	)
	if err := rows.Scan(&rec.ID, &rec.Scenario, &rec.Pass, &rec.Steps, &errorsJSON, &startedAt, &elapsedMS); err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	if err := json.Unmarshal([]byte(errorsJSON), &rec.Errors); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal errors: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("parse started_at: %w", err)
	}
	rec.StartedAt = parsed
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return rec, nil
}
