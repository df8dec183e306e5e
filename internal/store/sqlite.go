// Package store provides SQLite-based persistence for the record
// repository. It owns the record/representation/version hierarchy, data
// sets with their assignments, and data provider rows.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store represents the SQLite database store. Hot-path statements are
// prepared once in Initialize and are safe for concurrent use.
type Store struct {
	db *sql.DB

	insertVersionStmt    *sql.Stmt
	getVersionStmt       *sql.Stmt
	latestPersistentStmt *sql.Stmt
	listVersionsStmt     *sql.Stmt
	listAllVersionsStmt  *sql.Stmt
	persistVersionStmt   *sql.Stmt
	setFilesStmt         *sql.Stmt
	addAssignmentStmt    *sql.Stmt
	removeAssignmentStmt *sql.Stmt
	listAssignmentsStmt  *sql.Stmt
	reverseLookupStmt    *sql.Stmt
}

// New creates a new store connection.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection. The inline content
// backend shares this connection so small payloads live in the same
// database file as the file metadata.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Initialize creates the database schema and prepares the hot-path
// statements. Must be called once before the store is used.
func (s *Store) Initialize() error {
	schema := `
	-- Data providers
	CREATE TABLE IF NOT EXISTS data_providers (
		provider_id TEXT PRIMARY KEY,
		properties JSON,
		creation_date TEXT NOT NULL
	);

	-- Representation versions: one row per (record, schema, version).
	-- version_id values are time-ordered UUIDs, so the natural key order
	-- doubles as recency order.
	CREATE TABLE IF NOT EXISTS representation_versions (
		cloud_id TEXT NOT NULL,
		schema_id TEXT NOT NULL,
		version_id TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		persistent INTEGER NOT NULL DEFAULT 0,
		creation_date TEXT NOT NULL,
		files JSON NOT NULL DEFAULT '[]',
		PRIMARY KEY (cloud_id, schema_id, version_id)
	);

	-- Data sets
	CREATE TABLE IF NOT EXISTS data_sets (
		provider_id TEXT NOT NULL,
		dataset_id TEXT NOT NULL,
		description TEXT,
		creation_date TEXT NOT NULL,
		PRIMARY KEY (provider_id, dataset_id)
	);

	-- Assignments: partitioned by the encoded compound data set id.
	-- version_id NULL means "latest persistent at read time".
	CREATE TABLE IF NOT EXISTS data_set_assignments (
		provider_dataset_id TEXT NOT NULL,
		cloud_id TEXT NOT NULL,
		schema_id TEXT NOT NULL,
		version_id TEXT,
		creation_date TEXT NOT NULL,
		PRIMARY KEY (provider_dataset_id, cloud_id, schema_id)
	);

	-- Inline content payloads (small files), shared with the content router.
	CREATE TABLE IF NOT EXISTS content_blobs (
		object_key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		content_length INTEGER NOT NULL
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_assignments_reverse ON data_set_assignments(cloud_id, schema_id);
	CREATE INDEX IF NOT EXISTS idx_versions_provider ON representation_versions(provider_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return s.prepareStatements()
}

func (s *Store) prepareStatements() error {
	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.insertVersionStmt, `
			INSERT INTO representation_versions
				(cloud_id, schema_id, version_id, provider_id, persistent, creation_date, files)
			VALUES (?, ?, ?, ?, ?, ?, ?)`},
		{&s.getVersionStmt, `
			SELECT cloud_id, schema_id, version_id, provider_id, persistent, creation_date, files
			FROM representation_versions
			WHERE cloud_id = ? AND schema_id = ? AND version_id = ?`},
		{&s.latestPersistentStmt, `
			SELECT cloud_id, schema_id, version_id, provider_id, persistent, creation_date, files
			FROM representation_versions
			WHERE cloud_id = ? AND schema_id = ? AND persistent = 1
			ORDER BY version_id DESC LIMIT 1`},
		{&s.listVersionsStmt, `
			SELECT cloud_id, schema_id, version_id, provider_id, persistent, creation_date, files
			FROM representation_versions
			WHERE cloud_id = ? AND schema_id = ?
			ORDER BY version_id DESC`},
		{&s.listAllVersionsStmt, `
			SELECT cloud_id, schema_id, version_id, provider_id, persistent, creation_date, files
			FROM representation_versions
			WHERE cloud_id = ?
			ORDER BY schema_id DESC, version_id DESC`},
		{&s.persistVersionStmt, `
			UPDATE representation_versions
			SET persistent = 1, creation_date = ?
			WHERE cloud_id = ? AND schema_id = ? AND version_id = ? AND persistent = 0`},
		{&s.setFilesStmt, `
			UPDATE representation_versions
			SET files = ?
			WHERE cloud_id = ? AND schema_id = ? AND version_id = ?`},
		{&s.addAssignmentStmt, `
			INSERT INTO data_set_assignments
				(provider_dataset_id, cloud_id, schema_id, version_id, creation_date)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(provider_dataset_id, cloud_id, schema_id)
			DO UPDATE SET version_id = excluded.version_id, creation_date = excluded.creation_date`},
		{&s.removeAssignmentStmt, `
			DELETE FROM data_set_assignments
			WHERE provider_dataset_id = ? AND cloud_id = ? AND schema_id = ?`},
		{&s.listAssignmentsStmt, `
			SELECT cloud_id, schema_id, version_id, creation_date
			FROM data_set_assignments
			WHERE provider_dataset_id = ?
				AND (cloud_id > ? OR (cloud_id = ? AND schema_id >= ?))
			ORDER BY cloud_id, schema_id
			LIMIT ?`},
		{&s.reverseLookupStmt, `
			SELECT provider_dataset_id, version_id
			FROM data_set_assignments
			WHERE cloud_id = ? AND schema_id = ?`},
	}

	for _, st := range stmts {
		prepared, err := s.db.Prepare(st.query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		*st.dst = prepared
	}
	return nil
}

// VerifySchema checks that every expected table exists.
func (s *Store) VerifySchema() error {
	expected := []string{
		"data_providers",
		"representation_versions",
		"data_sets",
		"data_set_assignments",
		"content_blobs",
	}
	for _, table := range expected {
		var name string
		err := s.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`,
			table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("missing table %s", table)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// VerifyDataSetKeys decodes every stored compound data set key, so a
// corrupted partition key is caught before it breaks pagination.
func (s *Store) VerifyDataSetKeys() error {
	rows, err := s.db.Query(`SELECT DISTINCT provider_dataset_id FROM data_set_assignments`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		if _, _, err := DecodeDataSetKey(key); err != nil {
			return err
		}
	}
	return rows.Err()
}

// formatTime renders a timestamp the way the store persists it.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp parses a timestamp string from SQLite in various formats.
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999+07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05+07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
