package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "indexed_files: codebase tier with embeddings",
		SQL: `
CREATE TABLE indexed_files (
    path          TEXT PRIMARY KEY,
    preview       TEXT NOT NULL,
    language      TEXT,
    line_start    INTEGER NOT NULL DEFAULT 0,
    line_end      INTEGER NOT NULL DEFAULT 0,
    last_modified INTEGER NOT NULL,
    embedding     BLOB,
    model         TEXT,
    dimensions    INTEGER NOT NULL DEFAULT 0,
    indexed_at    INTEGER NOT NULL
);

CREATE INDEX idx_files_model ON indexed_files(model);
`,
	},
	{
		Version:     2,
		Description: "decisions: recorded project decisions",
		SQL: `
CREATE TABLE decisions (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    rationale   TEXT NOT NULL DEFAULT '',
    embedding   BLOB,
    model       TEXT,
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_decisions_created ON decisions(created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "archive_summaries: long-term tier",
		SQL: `
CREATE TABLE archive_summaries (
    id         INTEGER PRIMARY KEY,
    summary    TEXT NOT NULL,
    source     TEXT,
    session_id TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_archive_created ON archive_summaries(created_at DESC);
`,
	},
	{
		Version:     4,
		Description: "critical_context: content exempt from compaction",
		SQL: `
CREATE TABLE critical_context (
    id         TEXT PRIMARY KEY,
    type       TEXT NOT NULL CHECK (type IN ('decision', 'requirement', 'instruction', 'custom')),
    content    TEXT NOT NULL,
    reason     TEXT,
    source     TEXT,
    created_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     5,
		Description: "health_history: health snapshots",
		SQL: `
CREATE TABLE health_history (
    id                  INTEGER PRIMARY KEY,
    tokens_used         INTEGER NOT NULL,
    tokens_limit        INTEGER NOT NULL,
    utilization_percent REAL NOT NULL,
    health              TEXT NOT NULL,
    relevance_score     REAL NOT NULL,
    drift_score         REAL NOT NULL,
    critical_count      INTEGER NOT NULL,
    suggestions         TEXT NOT NULL DEFAULT '[]',
    recorded_at         INTEGER NOT NULL
);

CREATE INDEX idx_health_recorded ON health_history(recorded_at DESC);
`,
	},
	{
		Version:     6,
		Description: "sessions: assistant session tracking",
		SQL: `
CREATE TABLE sessions (
    id               INTEGER PRIMARY KEY,
    session_id       TEXT NOT NULL UNIQUE,
    project          TEXT,
    goal             TEXT,
    started_at       INTEGER NOT NULL,
    ended_at         INTEGER,
    status           TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed')),
    chunk_count      INTEGER NOT NULL DEFAULT 0,
    compaction_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_sessions_status     ON sessions(status);
CREATE INDEX idx_sessions_started_at ON sessions(started_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
