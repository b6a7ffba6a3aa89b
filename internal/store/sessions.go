package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session represents one assistant session working on a project.
type Session struct {
	ID              int64  `json:"-"`
	SessionID       string `json:"session_id"`
	Project         string `json:"project,omitempty"`
	Goal            string `json:"goal,omitempty"`
	StartedAt       int64  `json:"started_at"`
	EndedAt         *int64 `json:"ended_at,omitempty"`
	Status          string `json:"status"`
	ChunkCount      int    `json:"chunk_count"`
	CompactionCount int    `json:"compaction_count"`
}

const sessionColumns = `id, session_id, COALESCE(project, ''), COALESCE(goal, ''), started_at, ended_at, status, chunk_count, compaction_count`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.SessionID, &s.Project, &s.Goal, &s.StartedAt, &s.EndedAt, &s.Status, &s.ChunkCount, &s.CompactionCount); err != nil {
		return nil, err
	}
	return &s, nil
}

// InitSession creates or resumes a session. The bool reports whether a new
// session was created.
func (db *DB) InitSession(ctx context.Context, sessionID, project string) (*Session, bool, error) {
	s, err := scanSession(db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ? AND status = 'active'`, sessionID))
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("check existing session: %w", err)
	}

	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, project, started_at, status) VALUES (?, ?, ?, 'active')
		ON CONFLICT(session_id) DO UPDATE SET status = 'active', ended_at = NULL, started_at = excluded.started_at
	`, sessionID, project, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert session: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Session{
		ID:        id,
		SessionID: sessionID,
		Project:   project,
		StartedAt: now,
		Status:    "active",
	}, true, nil
}

// GetSession returns a session by its session_id, or nil if unknown.
func (db *DB) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	s, err := scanSession(db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// SetSessionGoal records the goal text drift is measured against.
func (db *DB) SetSessionGoal(ctx context.Context, sessionID, goal string) error {
	_, err := db.ExecContext(ctx, "UPDATE sessions SET goal = ? WHERE session_id = ?", goal, sessionID)
	if err != nil {
		return fmt.Errorf("set session goal: %w", err)
	}
	return nil
}

// EndSession marks an active session completed. Ending an unknown or
// already ended session is not an error.
func (db *DB) EndSession(ctx context.Context, sessionID string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE sessions SET status = 'completed', ended_at = COALESCE(ended_at, ?)
		WHERE session_id = ? AND status = 'active'
	`, now, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// GetRecentSessions returns the most recent sessions, ordered by started_at DESC.
func (db *DB) GetRecentSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// IncrementChunkCount bumps chunk_count for an active session.
func (db *DB) IncrementChunkCount(ctx context.Context, sessionID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE sessions SET chunk_count = chunk_count + 1 WHERE session_id = ? AND status = 'active'
	`, sessionID)
	if err != nil {
		return fmt.Errorf("increment chunk count: %w", err)
	}
	return nil
}

// IncrementCompactionCount bumps compaction_count for an active session.
func (db *DB) IncrementCompactionCount(ctx context.Context, sessionID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE sessions SET compaction_count = compaction_count + 1 WHERE session_id = ? AND status = 'active'
	`, sessionID)
	if err != nil {
		return fmt.Errorf("increment compaction count: %w", err)
	}
	return nil
}
