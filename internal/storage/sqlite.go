// Package storage persists run history and reported-signature state in
// SQLite. The reported-signatures table backs per-day notification
// deduplication: a signature alerts at most once per calendar day.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Storage handles database operations
type Storage struct {
	db *sql.DB
}

// Run represents one completed analysis run
type Run struct {
	ID               int64
	Timestamp        time.Time
	SourceFiles      []string
	TotalEvents      int
	TotalGroups      int
	FindingCount     int
	OverallErrorRate float64
	InputTokens      int
	OutputTokens     int
	CostUSD          float64
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when database is locked (5 seconds)
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1)
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused
	connMaxLifetime = 30 * time.Minute
)

// New creates a new storage instance
func New(dbPath string) (*Storage, error) {
	// Create directory if it doesn't exist (0700 for security - owner only)
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The _busy_timeout pragma prevents "database is locked" errors by waiting
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection to avoid lock contention
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// currentSchemaVersion is the latest schema version.
// Increment this when adding new migrations.
const currentSchemaVersion = 1

// initSchema creates the database schema if it doesn't exist
func (s *Storage) initSchema() error {
	// Create schema_version table first (tracks migration state)
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	version := s.getSchemaVersion()

	if err := s.migrateSchema(version); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		return 0 // No version set, needs full migration
	}
	return version
}

// setSchemaVersion updates the schema version
func (s *Storage) setSchemaVersion(version int) error {
	// Delete existing and insert new (simpler than upsert for single row)
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return nil
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil // Already up to date
	}

	log.Printf("storage: migrating schema from version %d to %d", currentVersion, currentSchemaVersion)

	// Migration 0 -> 1: Create base tables
	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	log.Printf("storage: schema migration completed successfully (now at version %d)", currentSchemaVersion)
	return nil
}

// migrateV1 creates the runs and reported_signatures tables
func (s *Storage) migrateV1() error {
	log.Printf("storage: running migration v1 - create base tables")

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		source_files TEXT,
		total_events INTEGER DEFAULT 0,
		total_groups INTEGER DEFAULT 0,
		finding_count INTEGER DEFAULT 0,
		overall_error_rate REAL DEFAULT 0.0,
		input_tokens INTEGER DEFAULT 0,
		output_tokens INTEGER DEFAULT 0,
		cost_usd REAL DEFAULT 0.0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	CREATE TABLE IF NOT EXISTS reported_signatures (
		day TEXT NOT NULL,
		signature TEXT NOT NULL,
		reported_at TEXT NOT NULL,
		UNIQUE(day, signature)
	);

	CREATE INDEX IF NOT EXISTS idx_reported_day ON reported_signatures(day);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun saves a completed run to the database
func (s *Storage) SaveRun(run *Run) error {
	sourceFilesJSON, err := json.Marshal(run.SourceFiles)
	if err != nil {
		return fmt.Errorf("failed to marshal source files: %w", err)
	}

	query := `
		INSERT INTO runs (
			timestamp, source_files, total_events, total_groups,
			finding_count, overall_error_rate,
			input_tokens, output_tokens, cost_usd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.Timestamp.Format(time.RFC3339),
		string(sourceFilesJSON),
		run.TotalEvents,
		run.TotalGroups,
		run.FindingCount,
		run.OverallErrorRate,
		run.InputTokens,
		run.OutputTokens,
		run.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// GetRecentRuns retrieves runs from the last N days, newest first
func (s *Storage) GetRecentRuns(days int) ([]*Run, error) {
	cutoffDate := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	query := `
		SELECT id, timestamp, source_files, total_events, total_groups,
		       finding_count, overall_error_rate,
		       input_tokens, output_tokens, cost_usd
		FROM runs
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := s.db.Query(query, cutoffDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func(rows *sql.Rows) {
		err = rows.Close()
		if err != nil {
			log.Printf("storage: failed to close database rows: %v", err)
		}
	}(rows)

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CheckAndSet records that a signature was reported today. Returns true
// if the signature had already been reported today (the caller should
// suppress its notification). The check and the insert are one atomic
// statement, so concurrent runs cannot both claim a signature.
func (s *Storage) CheckAndSet(signature string) (bool, error) {
	now := time.Now()
	day := now.Format("2006-01-02")

	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO reported_signatures (day, signature, reported_at) VALUES (?, ?, ?)`,
		day, signature, now.Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record reported signature: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// No row inserted means the (day, signature) pair already existed
	return affected == 0, nil
}

// CleanupOldRuns deletes runs and reported-signature records older than N days
func (s *Storage) CleanupOldRuns(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	result, err := s.db.Exec(`DELETE FROM runs WHERE timestamp < ?`, cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old runs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if _, err := s.db.Exec(`DELETE FROM reported_signatures WHERE day < ?`, cutoff.Format("2006-01-02")); err != nil {
		return affected, fmt.Errorf("failed to cleanup old reported signatures: %w", err)
	}

	return affected, nil
}

// GetStatistics returns aggregate statistics over the stored runs
func (s *Storage) GetStatistics() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, err
	}
	stats["total_runs"] = total

	var totalCost float64
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(cost_usd), 0) FROM runs`).Scan(&totalCost); err != nil {
		return nil, err
	}
	stats["total_cost_usd"] = totalCost

	var totalEvents int64
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(total_events), 0) FROM runs`).Scan(&totalEvents); err != nil {
		return nil, err
	}
	stats["total_events"] = totalEvents

	return stats, nil
}

// scanRun scans a database row into a Run struct
func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		id                                     int64
		timestamp, sourceFilesJSON             string
		totalEvents, totalGroups, findingCount int
		overallErrorRate                       float64
		inputTokens, outputTokens              int
		costUSD                                float64
	)

	err := rows.Scan(
		&id, &timestamp, &sourceFilesJSON, &totalEvents, &totalGroups,
		&findingCount, &overallErrorRate, &inputTokens, &outputTokens, &costUSD,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	var sourceFiles []string
	if err := json.Unmarshal([]byte(sourceFilesJSON), &sourceFiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source files: %w", err)
	}

	return &Run{
		ID:               id,
		Timestamp:        ts,
		SourceFiles:      sourceFiles,
		TotalEvents:      totalEvents,
		TotalGroups:      totalGroups,
		FindingCount:     findingCount,
		OverallErrorRate: overallErrorRate,
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		CostUSD:          costUSD,
	}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
