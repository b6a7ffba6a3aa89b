package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ArchiveEntry is a long-term summary of past session content.
type ArchiveEntry struct {
	ID        int64     `json:"id"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AddArchiveSummary appends a summary to the archive tier.
func (db *DB) AddArchiveSummary(ctx context.Context, summary, source, sessionID string) (ArchiveEntry, error) {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO archive_summaries (summary, source, session_id, created_at) VALUES (?, ?, ?, ?)
	`, summary, nullIfEmpty(source), nullIfEmpty(sessionID), now.UnixMilli())
	if err != nil {
		return ArchiveEntry{}, fmt.Errorf("add archive summary: %w", err)
	}
	id, _ := res.LastInsertId()
	return ArchiveEntry{ID: id, Summary: summary, Source: source, SessionID: sessionID, CreatedAt: now}, nil
}

// SearchRelevant returns the k archive entries sharing the most terms with
// query. Newer entries win ties. Entries sharing no term are skipped.
func (db *DB) SearchRelevant(ctx context.Context, query string, k int) ([]ArchiveEntry, error) {
	q := termSet(query)
	if len(q) == 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, summary, COALESCE(source, ''), COALESCE(session_id, ''), created_at
		FROM archive_summaries ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("search archive: %w", err)
	}
	defer rows.Close()

	var candidates []scored[ArchiveEntry]
	for rows.Next() {
		var e ArchiveEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.Summary, &e.Source, &e.SessionID, &created); err != nil {
			return nil, fmt.Errorf("scan archive entry: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created)

		overlap := 0
		for t := range termSet(e.Summary) {
			if _, ok := q[t]; ok {
				overlap++
			}
		}
		candidates = append(candidates, scored[ArchiveEntry]{item: e, score: float64(overlap) / float64(len(q))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := topK(candidates, k)
	out := make([]ArchiveEntry, len(top))
	for i, s := range top {
		out[i] = s.item
	}
	return out, nil
}

func termSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if len(f) > 2 {
			out[f] = struct{}{}
		}
	}
	return out
}
