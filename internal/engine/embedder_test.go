package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/memorylayer/internal/store"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"Hello World", 2},
		{"Go developer, prefers minimal dependencies.", 5},
		{"a b c", 0}, // single chars skipped
		{"SQLite WAL mode", 3},
		{"", 0},
	}

	for _, tt := range tests {
		tokens := tokenize(tt.input)
		if len(tokens) != tt.want {
			t.Errorf("tokenize(%q) = %d tokens %v, want %d", tt.input, len(tokens), tokens, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	vec := []float64{3, 4}
	normalize(vec)

	norm := math.Sqrt(vec[0]*vec[0] + vec[1]*vec[1])
	if math.Abs(norm-1.0) > 1e-10 {
		t.Errorf("normalized magnitude = %f, want 1", norm)
	}

	zero := []float64{0, 0, 0}
	normalize(zero) // should not panic
	for i, v := range zero {
		if v != 0 {
			t.Errorf("zero[%d] = %f, want 0", i, v)
		}
	}
}

var tfidfCorpus = []string{
	"Go developer who prefers minimal dependencies",
	"Uses SQLite with WAL mode for concurrent reads",
	"Pattern: graceful error handling with Go error wrapping",
}

func TestTFIDFEmbedder(t *testing.T) {
	embedder := NewTFIDFEmbedder(tfidfCorpus, 512)
	if !strings.HasPrefix(embedder.Model(), "tfidf:") {
		t.Errorf("model = %q, want tfidf: prefix", embedder.Model())
	}

	ctx := context.Background()
	vec, err := embedder.Embed(ctx, "Go developer minimal dependencies")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != embedder.Dimensions() {
		t.Errorf("vec length = %d, want %d", len(vec), embedder.Dimensions())
	}

	docVec, _ := embedder.Embed(ctx, tfidfCorpus[0])
	sim := store.CosineSimilarity(vec, docVec)
	if sim < 0.5 {
		t.Errorf("similar text cosine = %f, want > 0.5", sim)
	}

	unrelatedVec, _ := embedder.Embed(ctx, "Python machine learning tensorflow")
	if unrelated := store.CosineSimilarity(vec, unrelatedVec); unrelated >= sim {
		t.Errorf("unrelated similarity %f should be less than related %f", unrelated, sim)
	}
}

func TestTFIDFModelFingerprint(t *testing.T) {
	a := NewTFIDFEmbedder(tfidfCorpus, 512)
	b := NewTFIDFEmbedder(tfidfCorpus, 512)
	if a.Model() != b.Model() {
		t.Errorf("same corpus gave different models: %s vs %s", a.Model(), b.Model())
	}
	c := NewTFIDFEmbedder(append(tfidfCorpus, "brand new vocabulary terms"), 512)
	if a.Model() == c.Model() {
		t.Error("changed corpus should change the model fingerprint")
	}
}

func TestTFIDFEmbedderEmpty(t *testing.T) {
	embedder := NewTFIDFEmbedder(nil, 512)
	vec, err := embedder.Embed(context.Background(), "test query")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 1 || embedder.Dimensions() != 1 {
		t.Errorf("vec length = %d, dims = %d, want 1", len(vec), embedder.Dimensions())
	}
}

func TestOllamaEmbedder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "nomic-embed-text" {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{0.1, 0.2, 0.3}}})
	}))
	defer ts.Close()

	emb := NewOllamaEmbedder(ts.URL+"/", "nomic-embed-text", 0)
	vec, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || emb.Dimensions() != 3 {
		t.Errorf("vec = %v, dims = %d", vec, emb.Dimensions())
	}
	if emb.Model() != "ollama:nomic-embed-text" {
		t.Errorf("model = %q", emb.Model())
	}

	if !ProbeOllama(context.Background(), ts.URL, "nomic-embed-text") {
		t.Error("ProbeOllama should succeed for available model")
	}
	if ProbeOllama(context.Background(), ts.URL, "missing") {
		t.Error("ProbeOllama should fail for missing model")
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.5, -0.5}},
			},
			"model": "text-embedding-ada-002",
		})
	}))
	defer ts.Close()

	emb := NewOpenAIEmbedder("sk-test", ts.URL+"/v1", "")
	vec, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 || vec[1] != -0.5 {
		t.Errorf("vec = %v", vec)
	}
	if emb.Model() != "openai:text-embedding-ada-002" {
		t.Errorf("model = %q", emb.Model())
	}
	if emb.Dimensions() != 2 {
		t.Errorf("dims = %d, want 2", emb.Dimensions())
	}
}

func TestOpenAIEmbedderModelName(t *testing.T) {
	var gotModel string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{1}}},
		})
	}))
	defer ts.Close()

	tests := []struct {
		name string
		want string
	}{
		{"text-search-ada-query-001", "text-search-ada-query-001"},
		{"", "text-embedding-ada-002"},
		{"not-a-model", "text-embedding-ada-002"},
	}
	for _, tt := range tests {
		emb := NewOpenAIEmbedder("sk-test", ts.URL+"/v1", tt.name)
		if _, err := emb.Embed(context.Background(), "hello"); err != nil {
			t.Fatalf("Embed(%q): %v", tt.name, err)
		}
		if gotModel != tt.want {
			t.Errorf("model %q sent as %q, want %q", tt.name, gotModel, tt.want)
		}
		if emb.Model() != "openai:"+tt.want {
			t.Errorf("Model() = %q", emb.Model())
		}
	}
}

// countingEmbedder returns a fixed vector and counts calls.
type countingEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (c *countingEmbedder) Embed(context.Context, string) ([]float64, error) {
	c.calls++
	return c.vec, c.err
}
func (c *countingEmbedder) Model() string   { return "counting" }
func (c *countingEmbedder) Dimensions() int { return len(c.vec) }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{vec: []float64{1, 0}}
	emb := NewCachedEmbedder(inner, 2)

	ctx := context.Background()
	emb.Embed(ctx, "a")
	emb.Embed(ctx, "a")
	emb.Embed(ctx, "b")
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}

	emb.Embed(ctx, "c") // evicts a
	emb.Embed(ctx, "a")
	if inner.calls != 4 {
		t.Errorf("inner calls after eviction = %d, want 4", inner.calls)
	}
	if n := emb.(*CachedEmbedder).Len(); n != 2 {
		t.Errorf("cache len = %d, want 2", n)
	}
}

func TestCachedEmbedderSkipsErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	emb := NewCachedEmbedder(inner, 4)
	for range 2 {
		if _, err := emb.Embed(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("errors should not be cached, calls = %d", inner.calls)
	}
}

func TestCachedEmbedderDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	if NewCachedEmbedder(inner, 0) != Embedder(inner) {
		t.Error("size 0 should return the inner embedder")
	}
}
