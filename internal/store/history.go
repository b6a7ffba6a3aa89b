package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/memorylayer/internal/health"
)

// RecordHealth appends a health snapshot.
func (db *DB) RecordHealth(ctx context.Context, h health.ContextHealth) error {
	suggestions, err := json.Marshal(h.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	ts := h.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO health_history (tokens_used, tokens_limit, utilization_percent, health,
			relevance_score, drift_score, critical_count, suggestions, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.TokensUsed, h.TokensLimit, h.UtilizationPercent, string(h.Health),
		h.RelevanceScore, h.DriftScore, h.CriticalContextCount, string(suggestions), ts.UnixMilli())
	if err != nil {
		return fmt.Errorf("record health: %w", err)
	}
	return nil
}

// HealthHistory returns up to limit snapshots, newest first.
func (db *DB) HealthHistory(ctx context.Context, limit int) ([]health.ContextHealth, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tokens_used, tokens_limit, utilization_percent, health, relevance_score,
			drift_score, critical_count, suggestions, recorded_at
		FROM health_history ORDER BY recorded_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("health history: %w", err)
	}
	defer rows.Close()

	var out []health.ContextHealth
	for rows.Next() {
		var h health.ContextHealth
		var level, suggestions string
		var recorded int64
		if err := rows.Scan(&h.TokensUsed, &h.TokensLimit, &h.UtilizationPercent, &level, &h.RelevanceScore,
			&h.DriftScore, &h.CriticalContextCount, &suggestions, &recorded); err != nil {
			return nil, fmt.Errorf("scan health: %w", err)
		}
		h.Health = health.Level(level)
		h.CompactionNeeded = h.Health != health.LevelGood
		h.DriftDetected = h.DriftScore >= 0.3
		h.Timestamp = time.UnixMilli(recorded)
		if err := json.Unmarshal([]byte(suggestions), &h.Suggestions); err != nil {
			return nil, fmt.Errorf("decode suggestions: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// PruneHealthHistory keeps only the newest keep snapshots.
func (db *DB) PruneHealthHistory(ctx context.Context, keep int) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM health_history WHERE id NOT IN (
			SELECT id FROM health_history ORDER BY recorded_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune health history: %w", err)
	}
	return res.RowsAffected()
}
