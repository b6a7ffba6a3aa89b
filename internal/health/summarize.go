package health

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lazypower/memorylayer/internal/llm"
)

// Summarizer condenses a chunk's content.
type Summarizer interface {
	Summarize(ctx context.Context, c Chunk) (string, error)
}

// ExtractiveSummarizer keeps the leading sentence or line of a chunk,
// capped at a quarter of the original length.
type ExtractiveSummarizer struct {
	// MinChars is the floor for the cap so very short chunks still produce
	// a readable lead. Zero means 80.
	MinChars int
}

func (s ExtractiveSummarizer) Summarize(_ context.Context, c Chunk) (string, error) {
	text := strings.TrimSpace(c.Content)
	if text == "" {
		return "", nil
	}

	lead := text
	if i := strings.IndexByte(lead, '\n'); i > 0 {
		lead = lead[:i]
	}
	if i := strings.Index(lead, ". "); i > 0 {
		lead = lead[:i+1]
	}
	lead = strings.TrimSpace(lead)

	floor := s.MinChars
	if floor <= 0 {
		floor = 80
	}
	limit := max(len(text)/4, floor)
	if len(lead) > limit {
		lead = truncateRunes(lead, limit) + "..."
	}
	return lead, nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// back up to a rune boundary
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// LLMSummarizer asks a language model for a summary and falls back to
// Fallback when the call fails or returns nothing.
type LLMSummarizer struct {
	Client   llm.Client
	Fallback Summarizer
	Logger   *slog.Logger
}

func (s LLMSummarizer) Summarize(ctx context.Context, c Chunk) (string, error) {
	fallback := s.Fallback
	if fallback == nil {
		fallback = ExtractiveSummarizer{}
	}
	if s.Client == nil {
		return fallback.Summarize(ctx, c)
	}

	resp, err := s.Client.Complete(ctx, llm.SummaryPrompt(c.Source, c.Content))
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		if err == nil {
			err = fmt.Errorf("empty completion")
		}
		logger.Warn("llm summarize failed, using extractive summary", "chunk", c.ID, "error", err)
		return fallback.Summarize(ctx, c)
	}
	return strings.TrimSpace(resp.Content), nil
}
