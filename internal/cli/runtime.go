package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lazypower/memorylayer/internal/config"
	"github.com/lazypower/memorylayer/internal/engine"
	"github.com/lazypower/memorylayer/internal/health"
	"github.com/lazypower/memorylayer/internal/llm"
	"github.com/lazypower/memorylayer/internal/metrics"
	"github.com/lazypower/memorylayer/internal/store"
)

// loadConfig reads --config, or the default path when the flag is unset.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}

// setupLogging installs the default slog logger. Logs always go to stderr
// or a rotated file, never stdout, which belongs to hook and MCP output.
func setupLogging(cfg config.LogConfig) (io.Closer, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		w, closer = lj, lj
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openDB opens the configured database, defaulting to ~/.memorylayer.
func openDB(cfg config.Config) (*store.DB, string, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return nil, "", fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return db, dbPath, nil
}

// buildEngine selects the embedder and summarizer from cfg and wires an
// engine over db. m may be nil.
func buildEngine(ctx context.Context, cfg config.Config, db *store.DB, m *metrics.Metrics) (*engine.Engine, error) {
	emb, err := engine.SelectEmbedder(ctx, cfg.Embedding, db)
	if err != nil {
		return nil, err
	}

	var summarizer health.Summarizer
	if cfg.LLM.Provider != "" {
		client, err := llm.NewClient(cfg.LLM)
		if err != nil {
			slog.Warn("llm not configured, using extractive summaries", "error", err)
		} else {
			summarizer = health.LLMSummarizer{Client: client}
			slog.Info("llm summarizer", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		}
	}

	eng, err := engine.New(ctx, db, emb, engine.Options{
		TokenLimit:     cfg.Context.TokenLimit,
		MaxTokens:      cfg.Context.MaxTokens,
		PreserveRecent: cfg.Compaction.PreserveRecent,
		Summarizer:     summarizer,
		Metrics:        m,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("embedder", "model", emb.Model())
	return eng, nil
}
