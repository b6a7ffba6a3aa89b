package cli

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/memorylayer/internal/engine"
)

var (
	indexIncludes []string
	indexExcludes []string
	indexMaxSize  string
)

var defaultIncludes = []string{
	"**/*.{go,py,js,jsx,ts,tsx,rs,java,kt,rb,c,h,cc,cpp,hpp,cs,swift,php,sh,sql}",
	"**/*.{md,yaml,yml,toml,json,proto}",
}

var defaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
}

var languages = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".jsx": "javascript",
	".ts": "typescript", ".tsx": "typescript", ".rs": "rust", ".java": "java",
	".kt": "kotlin", ".rb": "ruby", ".c": "c", ".h": "c", ".cc": "cpp",
	".cpp": "cpp", ".hpp": "cpp", ".cs": "csharp", ".swift": "swift",
	".php": "php", ".sh": "bash", ".sql": "sql", ".md": "markdown",
	".yaml": "yaml", ".yml": "yaml", ".toml": "toml", ".json": "json",
	".proto": "protobuf",
}

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index source files into the codebase tier",
	Long: heredoc.Doc(`
		Walk dir (default the current directory) and store a searchable
		preview and embedding of every matching file. Paths are stored
		absolute so they line up with the files an agent reads and edits.

		Globs use doublestar syntax, e.g. "src/**/*.go" or "**/*.{ts,tsx}".
		With the TF-IDF embedder the vocabulary is refitted after indexing.
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringSliceVarP(&indexIncludes, "include", "i", defaultIncludes, "glob of files to index (repeatable)")
	indexCmd.Flags().StringSliceVarP(&indexExcludes, "exclude", "x", defaultExcludes, "glob of files to skip (repeatable)")
	indexCmd.Flags().StringVar(&indexMaxSize, "max-size", "256KB", "skip files larger than this")
}

func runIndex(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	maxSize, err := humanize.ParseBytes(indexMaxSize)
	if err != nil {
		return fmt.Errorf("--max-size: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx := cmd.Context()
	db, _, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := buildEngine(ctx, cfg, db, nil)
	if err != nil {
		return err
	}
	defer eng.Stop()

	start := time.Now()
	stats, err := indexTree(ctx, eng, root, indexIncludes, indexExcludes, int64(maxSize))
	if err != nil {
		return err
	}

	if strings.HasPrefix(eng.Embedder().Model(), "tfidf:") {
		docs, err := db.CorpusTexts(ctx)
		if err != nil {
			return err
		}
		eng.SetEmbedder(engine.NewCachedEmbedder(engine.NewTFIDFEmbedder(docs, cfg.Embedding.MaxTerms), cfg.Embedding.CacheSize))
	}
	embedded, err := eng.EmbedMissing(ctx)
	if err != nil {
		return err
	}

	total, err := db.CountFiles(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s files (%s) in %s, skipped %s, re-embedded %s. %s files in index.\n",
		humanize.Comma(int64(stats.Files)), humanize.Bytes(uint64(stats.Bytes)),
		time.Since(start).Round(time.Millisecond),
		humanize.Comma(int64(stats.Skipped)), humanize.Comma(int64(embedded)),
		humanize.Comma(int64(total)))
	return nil
}

type indexStats struct {
	Files   int
	Skipped int
	Bytes   int64
}

// indexTree indexes every file under root matching an include glob and no
// exclude glob. Oversized and binary files are skipped.
func indexTree(ctx context.Context, eng *engine.Engine, root string, includes, excludes []string, maxSize int64) (indexStats, error) {
	var stats indexStats
	abs, err := filepath.Abs(root)
	if err != nil {
		return stats, err
	}
	for _, p := range append(append([]string{}, includes...), excludes...) {
		if !doublestar.ValidatePattern(p) {
			return stats, fmt.Errorf("invalid glob %q", p)
		}
	}

	fsys := os.DirFS(abs)
	seen := make(map[string]bool)
	for _, pattern := range includes {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return stats, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if seen[rel] || excluded(rel, excludes) {
				continue
			}
			seen[rel] = true
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			ok, size, err := indexOne(ctx, eng, fsys, abs, rel, maxSize)
			if err != nil {
				slog.Warn("index file", "path", rel, "error", err)
				stats.Skipped++
				continue
			}
			if !ok {
				stats.Skipped++
				continue
			}
			stats.Files++
			stats.Bytes += size
		}
	}
	return stats, nil
}

func excluded(rel string, excludes []string) bool {
	for _, p := range excludes {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func indexOne(ctx context.Context, eng *engine.Engine, fsys fs.FS, root, rel string, maxSize int64) (bool, int64, error) {
	info, err := fs.Stat(fsys, rel)
	if err != nil {
		return false, 0, err
	}
	if maxSize > 0 && info.Size() > maxSize {
		return false, 0, nil
	}
	data, err := fs.ReadFile(fsys, rel)
	if err != nil {
		return false, 0, err
	}
	if bytes.IndexByte(data[:min(len(data), 8000)], 0) >= 0 {
		return false, 0, nil
	}

	path := filepath.Join(root, filepath.FromSlash(rel))
	lang := languages[strings.ToLower(filepath.Ext(rel))]
	if err := eng.IndexFile(ctx, path, string(data), lang, info.ModTime()); err != nil {
		return false, 0, err
	}
	return true, info.Size(), nil
}
