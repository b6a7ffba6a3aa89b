package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lazypower/memorylayer/internal/config"
)

// CorpusSource provides the documents a TF-IDF vocabulary is fitted on.
type CorpusSource interface {
	CorpusTexts(ctx context.Context) ([]string, error)
}

// SelectEmbedder resolves the configured provider. "auto" prefers a
// reachable Ollama, then OpenAI when a key is set, then TF-IDF over the
// indexed corpus. The result is wrapped in an LRU cache.
func SelectEmbedder(ctx context.Context, cfg config.EmbeddingConfig, corpus CorpusSource) (Embedder, error) {
	var emb Embedder
	switch cfg.Provider {
	case "ollama":
		emb = NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, 0)
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("embedding provider openai requires an API key")
		}
		emb = NewOpenAIEmbedder(cfg.OpenAIKey, cfg.BaseURL, "")
	case "tfidf":
	case "", "auto":
		switch {
		case ProbeOllama(ctx, cfg.OllamaURL, cfg.Model):
			emb = NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, 0)
		case cfg.OpenAIKey != "":
			emb = NewOpenAIEmbedder(cfg.OpenAIKey, cfg.BaseURL, "")
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if emb == nil {
		docs, err := corpus.CorpusTexts(ctx)
		if err != nil {
			return nil, fmt.Errorf("load tfidf corpus: %w", err)
		}
		emb = NewTFIDFEmbedder(docs, cfg.MaxTerms)
	}
	slog.Debug("embedder selected", "model", emb.Model())
	return NewCachedEmbedder(emb, cfg.CacheSize), nil
}
