package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/memorylayer/internal/budget"
	"github.com/lazypower/memorylayer/internal/store"
)

const (
	DefaultMaxTokens = 6000

	searchCandidates   = 20
	archiveCandidates  = 3
	decisionCandidates = 5
	archiveMinBudget   = 200
)

var tracer = otel.Tracer("github.com/lazypower/memorylayer/internal/engine")

// AssembleOptions bounds a single assembly.
type AssembleOptions struct {
	MaxTokens   int    // 0 means DefaultMaxTokens
	CurrentFile string // boosts hits in the same directory
}

// AssembledContext is the document handed to the model.
type AssembledContext struct {
	Context    string           `json:"context"`
	Sources    []string         `json:"sources"`
	TokenCount int              `json:"token_count"`
	Decisions  []store.Decision `json:"decisions"`
}

// Assembler builds a context document from the three memory tiers under a
// token budget. Allocation order is fixed: working memory, ranked code,
// archive, decisions. The working-memory section is always included, so
// TokenCount may exceed MaxTokens when the active file alone is larger.
type Assembler struct {
	working  WorkingMemory
	index    CodebaseIndex
	archive  Archive
	embedder Embedder
	ranker   *Ranker
}

func NewAssembler(w WorkingMemory, index CodebaseIndex, archive Archive, emb Embedder) *Assembler {
	return &Assembler{
		working:  w,
		index:    index,
		archive:  archive,
		embedder: emb,
		ranker:   NewRanker(),
	}
}

// retrieval holds the raw tier results fetched before allocation.
type retrieval struct {
	ranked     []RankedHit
	archive    []store.ArchiveEntry
	archiveErr error
	decisions  []store.Decision
}

// Assemble runs the four retrievals concurrently, then allocates their
// results in priority order. Embedding and code search errors are returned.
// Archive errors are returned only if the archive step is reached. Decision
// errors, and an empty semantic decision search, fall back to the most
// recent decisions.
func (a *Assembler) Assemble(ctx context.Context, query string, opts AssembleOptions) (*AssembledContext, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	ctx, span := tracer.Start(ctx, "engine.Assemble", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.Int("memorylayer.max_tokens", maxTokens))

	b, err := budget.New(maxTokens)
	if err != nil {
		return nil, err
	}

	wctx := a.working.GetContext()
	viewed := a.working.GetFilesViewed()

	r, err := a.retrieve(ctx, query, opts.CurrentFile, viewed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := &AssembledContext{Sources: []string{}, Decisions: []store.Decision{}}
	var sections [4]string // working, code, decisions, archive

	if f := wctx.ActiveFile; f != nil {
		text := formatActiveFile(f.Path, f.Language, f.Content)
		b.Allocate(text, "working:"+f.Path)
		sections[0] = text
		out.Sources = append(out.Sources, f.Path)
	}

	var code strings.Builder
	for i, h := range r.ranked {
		text := formatHit(h)
		if i == 0 {
			text = "## Relevant Code\n\n" + text
		}
		if !b.CanFit(text) {
			break
		}
		b.Allocate(text, "code:"+h.File)
		code.WriteString(text)
		out.Sources = append(out.Sources, h.File)
	}
	sections[1] = code.String()

	if b.Remaining() > archiveMinBudget {
		if r.archiveErr != nil {
			span.RecordError(r.archiveErr)
			return nil, fmt.Errorf("search archive: %w", r.archiveErr)
		}
		var arch strings.Builder
		for _, e := range r.archive {
			text := "- " + strings.TrimSpace(e.Summary) + "\n"
			if arch.Len() == 0 {
				text = "## From Archive\n\n" + text
			}
			if !b.CanFit(text) {
				continue
			}
			b.Allocate(text, fmt.Sprintf("archive:%d", e.ID))
			arch.WriteString(text)
		}
		sections[3] = arch.String()
	}

	if len(r.decisions) > 0 {
		text := formatDecisions(r.decisions)
		if b.CanFit(text) {
			b.Allocate(text, "decisions")
			sections[2] = text
			out.Decisions = r.decisions
		}
	}

	var doc strings.Builder
	for _, s := range sections {
		if s == "" {
			continue
		}
		doc.WriteString(s)
		doc.WriteString("\n")
	}
	out.Context = strings.TrimSpace(doc.String())
	out.TokenCount = b.Used()

	span.SetAttributes(
		attribute.Int("memorylayer.token_count", out.TokenCount),
		attribute.Int("memorylayer.sources", len(out.Sources)),
	)
	return out, nil
}

// retrieve embeds the query once. The code and decision paths share that
// vector, so the embedding service sees a single call per assembly.
func (a *Assembler) retrieve(ctx context.Context, query, currentFile string, viewed []string) (*retrieval, error) {
	var r retrieval
	g, gctx := errgroup.WithContext(ctx)

	queryVector := sync.OnceValues(func() ([]float64, error) {
		return a.embedder.Embed(gctx, query)
	})

	g.Go(func() error {
		vec, err := queryVector()
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		hits, err := a.index.Search(gctx, vec, searchCandidates)
		if err != nil {
			return fmt.Errorf("search codebase: %w", err)
		}
		r.ranked = a.ranker.Rank(hits, currentFile, viewed)
		return nil
	})

	g.Go(func() error {
		r.archive, r.archiveErr = a.archive.SearchRelevant(gctx, query, archiveCandidates)
		return nil
	})

	g.Go(func() error {
		r.decisions = a.decisions(gctx, queryVector)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &r, nil
}

// decisions never fails. An embedding error, a search error or an empty
// semantic result falls back to the most recent decisions, and a failing
// fallback yields no decisions. Falling back on an empty result keeps
// recorded decisions visible when the embedder has no usable vocabulary.
func (a *Assembler) decisions(ctx context.Context, queryVector func() ([]float64, error)) []store.Decision {
	if vec, err := queryVector(); err == nil {
		found, err := a.index.SearchDecisions(ctx, vec, decisionCandidates)
		if err == nil && len(found) > 0 {
			return found
		}
	}
	recent, err := a.index.GetRecentDecisions(ctx, decisionCandidates)
	if err != nil {
		return nil
	}
	return recent
}

func formatActiveFile(path, language, content string) string {
	return fmt.Sprintf("## Current File: %s\n\n```%s\n%s\n```\n", path, language, strings.TrimRight(content, "\n"))
}

func formatHit(h RankedHit) string {
	loc := h.File
	if h.LineStart > 0 {
		loc = fmt.Sprintf("%s:%d-%d", h.File, h.LineStart, h.LineEnd)
	}
	return fmt.Sprintf("### %s (%.0f%% relevant)\n\n```\n%s\n```\n\n", loc, h.Similarity*100, strings.TrimRight(h.Preview, "\n"))
}

func formatDecisions(ds []store.Decision) string {
	var sb strings.Builder
	sb.WriteString("## Recent Decisions\n\n")
	for _, d := range ds {
		sb.WriteString("- **" + d.Title + "**")
		if d.Description != "" {
			sb.WriteString(": " + d.Description)
		}
		if d.Rationale != "" {
			sb.WriteString(" (" + d.Rationale + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
