package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/strrl/jwt-lens/pkg/models"
)

var (
	dbInstance *sql.DB
	dbOnce     sync.Once
	dbErr      error
)

// GetDB returns a singleton in-memory DuckDB connection
func GetDB() (*sql.DB, error) {
	dbOnce.Do(func() {
		dbInstance, dbErr = initializeDuckDB()
	})
	return dbInstance, dbErr
}

// initializeDuckDB opens an in-memory database and creates the journal table
func initializeDuckDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	// DuckDB works best with single connection; an in-memory database is
	// also private to its connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(createAnalysesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}

	return db, nil
}

const createAnalysesTable = `
CREATE TABLE IF NOT EXISTS analyses (
	request_id   VARCHAR,
	token_digest VARCHAR,
	operation    VARCHAR,
	phase        VARCHAR,
	category     VARCHAR,
	severity     VARCHAR,
	detail       VARCHAR,
	recorded_at  TIMESTAMP
)`

// Journal records classified outcomes for the lifetime of the process
type Journal struct {
	db *sql.DB
}

// OpenJournal returns a journal backed by the process-wide database
func OpenJournal() (*Journal, error) {
	db, err := GetDB()
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Record appends one outcome
func (j *Journal) Record(ctx context.Context, e models.JournalEntry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO analyses VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.TokenDigest, e.Operation, string(e.Phase),
		e.Category, e.Severity, e.Detail, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s outcome: %w", e.Operation, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT request_id, token_digest, operation, phase, category, severity, detail, recorded_at
		FROM analyses
		ORDER BY recorded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		var (
			e     models.JournalEntry
			phase string
		)
		if err := rows.Scan(&e.RequestID, &e.TokenDigest, &e.Operation, &phase,
			&e.Category, &e.Severity, &e.Detail, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Phase = models.Phase(phase)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CategoryCount is how often one category was recorded
type CategoryCount struct {
	Category string
	Count    int
}

// CategoryCounts tallies outcomes, most frequent first
func (j *Journal) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS n
		FROM analyses
		GROUP BY category
		ORDER BY n DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count journal categories: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Reset empties the journal
func (j *Journal) Reset(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `DELETE FROM analyses`)
	return err
}
