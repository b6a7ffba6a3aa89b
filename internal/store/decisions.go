package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decision is a recorded project decision.
type Decision struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Rationale   string    `json:"rationale,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Text is the searchable text of a decision.
func (d Decision) Text() string {
	return d.Title + " " + d.Description + " " + d.Rationale
}

// AddDecision stores d with an optional embedding. A zero ID or CreatedAt
// is filled in.
func (db *DB) AddDecision(ctx context.Context, d Decision, vec []float64, model string) (Decision, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO decisions (id, title, description, rationale, embedding, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Title, d.Description, d.Rationale, embeddingArg(vec), nullIfEmpty(model), d.CreatedAt.UnixMilli())
	if err != nil {
		return Decision{}, fmt.Errorf("add decision: %w", err)
	}
	return d, nil
}

// SaveDecisionVector replaces the embedding of a decision.
func (db *DB) SaveDecisionVector(ctx context.Context, id string, vec []float64, model string) error {
	_, err := db.ExecContext(ctx, "UPDATE decisions SET embedding = ?, model = ? WHERE id = ?",
		encodeEmbedding(vec), model, id)
	if err != nil {
		return fmt.Errorf("save decision vector: %w", err)
	}
	return nil
}

// DecisionsMissingVectors returns decisions with no embedding or one from a
// different model.
func (db *DB) DecisionsMissingVectors(ctx context.Context, model string) ([]Decision, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, description, rationale, created_at
		FROM decisions WHERE embedding IS NULL OR model IS NULL OR model != ?
		ORDER BY created_at
	`, model)
	if err != nil {
		return nil, fmt.Errorf("decisions missing vectors: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// SearchDecisions returns the k decisions most similar to vec.
func (db *DB) SearchDecisions(ctx context.Context, vec []float64, k int) ([]Decision, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, description, rationale, created_at, embedding
		FROM decisions WHERE embedding IS NOT NULL ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("search decisions: %w", err)
	}
	defer rows.Close()

	var candidates []scored[Decision]
	for rows.Next() {
		var d Decision
		var created int64
		var blob []byte
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.Rationale, &created, &blob); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.CreatedAt = time.UnixMilli(created)
		candidates = append(candidates, scored[Decision]{item: d, score: CosineSimilarity(vec, decodeEmbedding(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := topK(candidates, k)
	out := make([]Decision, len(top))
	for i, s := range top {
		out[i] = s.item
	}
	return out, nil
}

// GetRecentDecisions returns the k newest decisions.
func (db *DB) GetRecentDecisions(ctx context.Context, k int) ([]Decision, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, description, rationale, created_at
		FROM decisions ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, k)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func scanDecisions(rows *sql.Rows) ([]Decision, error) {
	var out []Decision
	for rows.Next() {
		var d Decision
		var created int64
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.Rationale, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.CreatedAt = time.UnixMilli(created)
		out = append(out, d)
	}
	return out, rows.Err()
}
