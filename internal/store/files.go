package store

import (
	"context"
	"fmt"
	"time"
)

// IndexedFile is one entry of the codebase tier.
type IndexedFile struct {
	Path         string
	Preview      string
	Language     string
	LineStart    int
	LineEnd      int
	LastModified time.Time
	Embedding    []float64
	Model        string
}

// CodeHit is a semantic-search result from the codebase tier.
type CodeHit struct {
	File         string    `json:"file"`
	Preview      string    `json:"preview"`
	Similarity   float64   `json:"similarity"`
	LastModified time.Time `json:"last_modified"`
	LineStart    int       `json:"line_start,omitempty"`
	LineEnd      int       `json:"line_end,omitempty"`
}

// UpsertFile inserts or replaces an indexed file. A nil embedding leaves
// the stored vector in place.
func (db *DB) UpsertFile(ctx context.Context, f IndexedFile) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO indexed_files (path, preview, language, line_start, line_end, last_modified, embedding, model, dimensions, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			preview = excluded.preview,
			language = excluded.language,
			line_start = excluded.line_start,
			line_end = excluded.line_end,
			last_modified = excluded.last_modified,
			embedding = COALESCE(excluded.embedding, indexed_files.embedding),
			model = COALESCE(excluded.model, indexed_files.model),
			dimensions = CASE WHEN excluded.embedding IS NULL THEN indexed_files.dimensions ELSE excluded.dimensions END,
			indexed_at = excluded.indexed_at
	`, f.Path, f.Preview, f.Language, f.LineStart, f.LineEnd, f.LastModified.UnixMilli(),
		embeddingArg(f.Embedding), nullIfEmpty(f.Model), len(f.Embedding), now)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", f.Path, err)
	}
	return nil
}

// SaveFileVector stores the embedding for an already indexed file.
func (db *DB) SaveFileVector(ctx context.Context, path string, vec []float64, model string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE indexed_files SET embedding = ?, model = ?, dimensions = ? WHERE path = ?
	`, encodeEmbedding(vec), model, len(vec), path)
	if err != nil {
		return fmt.Errorf("save file vector: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save file vector: %s not indexed", path)
	}
	return nil
}

// DeleteFile removes a file from the index and reports whether it existed.
func (db *DB) DeleteFile(ctx context.Context, path string) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM indexed_files WHERE path = ?", path)
	if err != nil {
		return false, fmt.Errorf("delete file: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListFiles returns every indexed file ordered by path.
func (db *DB) ListFiles(ctx context.Context) ([]IndexedFile, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, preview, COALESCE(language, ''), line_start, line_end, last_modified, embedding, COALESCE(model, '')
		FROM indexed_files ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []IndexedFile
	for rows.Next() {
		var f IndexedFile
		var modified int64
		var blob []byte
		if err := rows.Scan(&f.Path, &f.Preview, &f.Language, &f.LineStart, &f.LineEnd, &modified, &blob, &f.Model); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.LastModified = time.UnixMilli(modified)
		f.Embedding = decodeEmbedding(blob)
		files = append(files, f)
	}
	return files, rows.Err()
}

// FilesMissingVectors returns files with no embedding or one produced by a
// different model.
func (db *DB) FilesMissingVectors(ctx context.Context, model string) ([]IndexedFile, error) {
	files, err := db.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	var out []IndexedFile
	for _, f := range files {
		if f.Embedding == nil || f.Model != model {
			out = append(out, f)
		}
	}
	return out, nil
}

// CorpusTexts returns the previews of every indexed file and the text of
// every decision, used to fit the TF-IDF vocabulary.
func (db *DB) CorpusTexts(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT preview FROM indexed_files
		UNION ALL
		SELECT title || ' ' || description || ' ' || rationale FROM decisions
	`)
	if err != nil {
		return nil, fmt.Errorf("corpus texts: %w", err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan corpus text: %w", err)
		}
		docs = append(docs, s)
	}
	return docs, rows.Err()
}

// Search returns the k files most similar to vec by brute-force cosine.
func (db *DB) Search(ctx context.Context, vec []float64, k int) ([]CodeHit, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, preview, line_start, line_end, last_modified, embedding
		FROM indexed_files WHERE embedding IS NOT NULL ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	var candidates []scored[CodeHit]
	for rows.Next() {
		var h CodeHit
		var modified int64
		var blob []byte
		if err := rows.Scan(&h.File, &h.Preview, &h.LineStart, &h.LineEnd, &modified, &blob); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		h.LastModified = time.UnixMilli(modified)
		h.Similarity = CosineSimilarity(vec, decodeEmbedding(blob))
		candidates = append(candidates, scored[CodeHit]{item: h, score: h.Similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := topK(candidates, k)
	hits := make([]CodeHit, len(top))
	for i, s := range top {
		hits[i] = s.item
	}
	return hits, nil
}

// CountFiles returns the number of indexed files.
func (db *DB) CountFiles(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM indexed_files").Scan(&n)
	return n, err
}

// embeddingArg binds a nil vector as SQL NULL rather than an empty blob.
func embeddingArg(vec []float64) any {
	if vec == nil {
		return nil
	}
	return encodeEmbedding(vec)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
