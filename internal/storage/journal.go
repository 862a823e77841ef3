package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// Journal records pipeline runs and their per-item outcomes in SQLite.
type Journal struct {
	db *sql.DB
}

// RunRecord is one journaled pipeline run.
type RunRecord struct {
	ID          string
	Origin      string
	StartedAt   time.Time
	FinishedAt  time.Time
	States      []string
	Warnings    []string
	Extracted   int
	Annotations int
	Skipped     int
	Items       []ItemRecord
}

// ItemRecord is one reported item of a run.
type ItemRecord struct {
	Path   string
	Name   string
	Kind   string
	Status string
	Detail string
}

// OpenJournal opens (creating if needed) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// NewJournal wraps an already opened database.
// DB must have schema already created via CreateSchema().
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordRun writes a run and all of its items in a single transaction.
func (j *Journal) RecordRun(run *RunRecord) error {
	states, err := json.Marshal(nonNil(run.States))
	if err != nil {
		return fmt.Errorf("failed to encode states: %w", err)
	}
	warnings, err := json.Marshal(nonNil(run.Warnings))
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	_, err = sq.Insert("runs").
		Columns("run_id", "origin", "started_at", "finished_at", "states", "warnings",
			"extracted", "annotations", "skipped").
		Values(
			run.ID,
			run.Origin,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.FinishedAt.UTC().Format(time.RFC3339Nano),
			string(states),
			string(warnings),
			run.Extracted,
			run.Annotations,
			run.Skipped,
		).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}

	for i, item := range run.Items {
		_, err := sq.Insert("run_items").
			Columns("run_id", "seq", "path", "name", "kind", "status", "detail").
			Values(run.ID, i, item.Path, item.Name, item.Kind, item.Status, item.Detail).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to write item %d of run %s: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. Items are not loaded.
func (j *Journal) RecentRuns(limit int) ([]RunRecord, error) {
	query := sq.Select("run_id", "origin", "started_at", "finished_at", "states", "warnings",
		"extracted", "annotations", "skipped").
		From("runs").
		OrderBy("started_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(j.db).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			run               RunRecord
			started, finished string
			states, warnings  string
		)
		if err := rows.Scan(&run.ID, &run.Origin, &started, &finished, &states, &warnings,
			&run.Extracted, &run.Annotations, &run.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if err := json.Unmarshal([]byte(states), &run.States); err != nil {
			return nil, fmt.Errorf("failed to decode states of run %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(warnings), &run.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunItems returns the items of a run in recorded order.
func (j *Journal) RunItems(runID string) ([]ItemRecord, error) {
	rows, err := sq.Select("path", "name", "kind", "status", "detail").
		From("run_items").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("seq").
		RunWith(j.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query items of run %s: %w", runID, err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var item ItemRecord
		if err := rows.Scan(&item.Path, &item.Name, &item.Kind, &item.Status, &item.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
