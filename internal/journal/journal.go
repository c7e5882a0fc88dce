// Package journal records every retention run and the per-backup decisions
// it made in a SQLite database, so deletions can be audited after the fact.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Actions recorded per backup.
const (
	ActionKeep   = "keep"
	ActionDelete = "delete"
	ActionFailed = "failed"
)

// Run is one retention pass over a series.
type Run struct {
	ID         string
	Series     string
	Policy     string
	Trigger    string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Matched    int
	Kept       int
	Deleted    int
	Failed     int
	Error      string

	Entries []Entry
}

// Entry is the decision taken for one backup during a run.
type Entry struct {
	RecordID  string
	Name      string
	CreatedAt time.Time // zero when unknown
	Action    string
	Reason    string
}

type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal version: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores a run and its entries atomically.
func (j *Journal) Record(ctx context.Context, run Run) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning journal tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, series, policy, triggered_by, dry_run, started_at, finished_at,
		                  matched, kept, deleted, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Series, run.Policy, run.Trigger, run.DryRun,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Matched, run.Kept, run.Deleted, run.Failed, run.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO decisions (run_id, record_id, name, created_at, action, reason)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing decision insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range run.Entries {
		if _, err := stmt.ExecContext(ctx, run.ID, e.RecordID, e.Name, formatTime(e.CreatedAt), e.Action, e.Reason); err != nil {
			return fmt.Errorf("inserting decision for %s: %w", e.Name, err)
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs, newest first, without their entries.
// An empty series matches all series.
func (j *Journal) Runs(ctx context.Context, series string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, series, policy, triggered_by, dry_run, started_at, finished_at,
		       matched, kept, deleted, failed, error
		FROM runs
		WHERE ? = '' OR series = ?
		ORDER BY started_at DESC
		LIMIT ?`, series, series, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Series, &r.Policy, &r.Trigger, &r.DryRun, &started, &finished,
			&r.Matched, &r.Kept, &r.Deleted, &r.Failed, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Entries returns the decisions recorded for a run, in insertion order.
func (j *Journal) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT record_id, name, created_at, action, reason
		FROM decisions
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.RecordID, &e.Name, &created, &e.Action, &e.Reason); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Trim deletes runs that started before cutoff and returns how many went.
func (j *Journal) Trim(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("trimming journal: %w", err)
	}
	return res.RowsAffected()
}

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
