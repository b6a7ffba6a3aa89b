package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/memorylayer/internal/health"
)

// SaveCritical persists a critical context item.
func (db *DB) SaveCritical(ctx context.Context, item health.CriticalContext) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO critical_context (id, type, content, reason, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type = excluded.type, content = excluded.content,
			reason = excluded.reason, source = excluded.source
	`, item.ID, string(item.Type), item.Content, nullIfEmpty(item.Reason), nullIfEmpty(item.Source), item.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save critical: %w", err)
	}
	return nil
}

func (db *DB) DeleteCritical(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM critical_context WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete critical: %w", err)
	}
	return nil
}

// ListCritical returns every persisted item in creation order.
func (db *DB) ListCritical(ctx context.Context) ([]health.CriticalContext, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, type, content, COALESCE(reason, ''), COALESCE(source, ''), created_at
		FROM critical_context ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list critical: %w", err)
	}
	defer rows.Close()

	var out []health.CriticalContext
	for rows.Next() {
		var it health.CriticalContext
		var typ string
		var created int64
		if err := rows.Scan(&it.ID, &typ, &it.Content, &it.Reason, &it.Source, &created); err != nil {
			return nil, fmt.Errorf("scan critical: %w", err)
		}
		it.Type = health.ContextType(typ)
		it.CreatedAt = time.UnixMilli(created)
		out = append(out, it)
	}
	return out, rows.Err()
}
