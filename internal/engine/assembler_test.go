package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/memorylayer/internal/store"
	"github.com/lazypower/memorylayer/internal/working"
)

type fakeIndex struct {
	hits      []store.CodeHit
	searchErr error

	decisions   []store.Decision
	decisionErr error
	recent      []store.Decision

	mu          sync.Mutex
	recentCalls int
}

func (f *fakeIndex) Search(context.Context, []float64, int) ([]store.CodeHit, error) {
	return f.hits, f.searchErr
}

func (f *fakeIndex) SearchDecisions(context.Context, []float64, int) ([]store.Decision, error) {
	return f.decisions, f.decisionErr
}

func (f *fakeIndex) GetRecentDecisions(context.Context, int) ([]store.Decision, error) {
	f.mu.Lock()
	f.recentCalls++
	f.mu.Unlock()
	return f.recent, nil
}

type fakeArchive struct {
	entries []store.ArchiveEntry
	err     error
}

func (f *fakeArchive) SearchRelevant(context.Context, string, int) ([]store.ArchiveEntry, error) {
	return f.entries, f.err
}

type staticEmbedder struct{ err error }

func (s staticEmbedder) Embed(context.Context, string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float64{1}, nil
}
func (staticEmbedder) Model() string   { return "static" }
func (staticEmbedder) Dimensions() int { return 1 }

func newTestAssembler(w *working.Memory, idx *fakeIndex, arch *fakeArchive, emb Embedder) *Assembler {
	if w == nil {
		w = working.New()
	}
	if idx == nil {
		idx = &fakeIndex{}
	}
	if arch == nil {
		arch = &fakeArchive{}
	}
	if emb == nil {
		emb = staticEmbedder{}
	}
	return NewAssembler(w, idx, arch, emb)
}

func TestAssembleSectionOrder(t *testing.T) {
	w := working.New()
	w.SetActiveFile("internal/api/handler.go", "package api", "go")

	idx := &fakeIndex{
		hits: []store.CodeHit{
			{File: "internal/store/db.go", Preview: "package store", Similarity: 0.9},
			{File: "internal/api/routes.go", Preview: "package api", Similarity: 0.5},
		},
		decisions: []store.Decision{{Title: "Use SQLite", Rationale: "single binary"}},
	}
	arch := &fakeArchive{entries: []store.ArchiveEntry{{ID: 1, Summary: "Moved sessions to SQLite"}}}

	out, err := newTestAssembler(w, idx, arch, nil).Assemble(context.Background(), "sqlite", AssembleOptions{})
	require.NoError(t, err)

	doc := out.Context
	order := []string{"## Current File: internal/api/handler.go", "## Relevant Code", "## Recent Decisions", "## From Archive"}
	last := -1
	for _, marker := range order {
		i := strings.Index(doc, marker)
		require.GreaterOrEqual(t, i, 0, "missing %q in:\n%s", marker, doc)
		assert.Greater(t, i, last, "%q out of order", marker)
		last = i
	}

	assert.Contains(t, doc, "internal/store/db.go (90% relevant)")
	assert.Less(t, strings.Index(doc, "db.go"), strings.Index(doc, "routes.go"))
	assert.Equal(t, []string{"internal/api/handler.go", "internal/store/db.go", "internal/api/routes.go"}, out.Sources)
	assert.Len(t, out.Decisions, 1)
	assert.Equal(t, doc, strings.TrimSpace(doc))
	assert.LessOrEqual(t, out.TokenCount, DefaultMaxTokens)
}

func TestAssembleWorkingMemoryMayOverflow(t *testing.T) {
	w := working.New()
	w.SetActiveFile("big.go", strings.Repeat("x", 2400), "go")
	idx := &fakeIndex{hits: []store.CodeHit{{File: "small.go", Preview: "p", Similarity: 0.9}}}

	out, err := newTestAssembler(w, idx, nil, nil).Assemble(context.Background(), "q", AssembleOptions{MaxTokens: 500})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, out.TokenCount, 600)
	assert.Contains(t, out.Context, "big.go")
	assert.NotContains(t, out.Context, "small.go", "no code fits once working memory exhausted the budget")
}

func TestAssembleGreedyStopsAtFirstMiss(t *testing.T) {
	idx := &fakeIndex{hits: []store.CodeHit{
		{File: "a.go", Preview: "package a", Similarity: 0.9},
		{File: "huge.go", Preview: strings.Repeat("y", 4000), Similarity: 0.8},
		{File: "tiny.go", Preview: "package tiny", Similarity: 0.7},
	}}

	out, err := newTestAssembler(nil, idx, nil, nil).Assemble(context.Background(), "q", AssembleOptions{MaxTokens: 200})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.go"}, out.Sources)
	assert.NotContains(t, out.Context, "tiny.go")
	assert.LessOrEqual(t, out.TokenCount, 200)
}

func TestAssembleDecisionFallback(t *testing.T) {
	idx := &fakeIndex{
		decisionErr: errors.New("vector index offline"),
		recent:      []store.Decision{{Title: "Recent one"}, {Title: "Recent two"}},
	}

	out, err := newTestAssembler(nil, idx, nil, nil).Assemble(context.Background(), "q", AssembleOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, idx.recentCalls)
	require.Len(t, out.Decisions, 2)
	assert.Equal(t, "Recent one", out.Decisions[0].Title)
	assert.Contains(t, out.Context, "**Recent two**")
}

func TestAssembleEmbeddingErrorPropagates(t *testing.T) {
	emb := staticEmbedder{err: errors.New("embedding service down")}
	_, err := newTestAssembler(nil, nil, nil, emb).Assemble(context.Background(), "q", AssembleOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")
}

func TestAssembleSearchErrorPropagates(t *testing.T) {
	idx := &fakeIndex{searchErr: errors.New("index corrupt")}
	_, err := newTestAssembler(nil, idx, nil, nil).Assemble(context.Background(), "q", AssembleOptions{})
	require.ErrorContains(t, err, "index corrupt")
}

func TestAssembleArchiveOnlyWithBudgetLeft(t *testing.T) {
	arch := &fakeArchive{err: errors.New("archive unavailable")}

	// 200 tokens remaining is not enough to reach the archive step
	_, err := newTestAssembler(nil, nil, arch, nil).Assemble(context.Background(), "q", AssembleOptions{MaxTokens: 200})
	require.NoError(t, err)

	_, err = newTestAssembler(nil, nil, arch, nil).Assemble(context.Background(), "q", AssembleOptions{MaxTokens: 201})
	require.ErrorContains(t, err, "archive unavailable")
}

func TestAssembleEmpty(t *testing.T) {
	out, err := newTestAssembler(nil, nil, nil, nil).Assemble(context.Background(), "q", AssembleOptions{})
	require.NoError(t, err)
	assert.Empty(t, out.Context)
	assert.Zero(t, out.TokenCount)
	assert.NotNil(t, out.Sources)
	assert.NotNil(t, out.Decisions)
}

func TestAssembleDecisionFallbackOnEmptySearch(t *testing.T) {
	idx := &fakeIndex{recent: []store.Decision{{Title: "Only recent"}}}

	out, err := newTestAssembler(nil, idx, nil, nil).Assemble(context.Background(), "q", AssembleOptions{})
	require.NoError(t, err)
	require.Len(t, out.Decisions, 1)
	assert.Equal(t, "Only recent", out.Decisions[0].Title)
}

func TestAssembleEmbedsQueryOnce(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{0.6, 0.8}}})
	}))
	defer ts.Close()

	idx := &fakeIndex{
		hits:      []store.CodeHit{{File: "a.go", Preview: "package a", Similarity: 0.9}},
		decisions: []store.Decision{{Title: "Use SQLite"}},
	}
	emb := NewCachedEmbedder(NewOllamaEmbedder(ts.URL, "nomic-embed-text", 0), 16)

	out, err := newTestAssembler(nil, idx, nil, emb).Assemble(context.Background(), "storage", AssembleOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"a.go"}, out.Sources)
	assert.Len(t, out.Decisions, 1)
	assert.Equal(t, 2, emb.Dimensions())
}

func TestDecisionsRecoverFromEmbeddingError(t *testing.T) {
	idx := &fakeIndex{
		decisions: []store.Decision{{Title: "Semantic match"}},
		recent:    []store.Decision{{Title: "Recent one"}, {Title: "Recent two"}},
	}
	a := newTestAssembler(nil, idx, nil, nil)

	failing := func() ([]float64, error) { return nil, errors.New("embedding timeout") }
	got := a.decisions(context.Background(), failing)

	require.Len(t, got, 2)
	assert.Equal(t, "Recent one", got[0].Title)
	assert.Equal(t, 1, idx.recentCalls)
}
