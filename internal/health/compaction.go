package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lazypower/memorylayer/internal/budget"
)

const (
	DefaultPreserveRecent = 10

	// selective stops once utilization drops to this percentage when the
	// caller gives no target.
	defaultSelectiveTarget = 50.0

	// aggressive removes eligible chunks scoring below this before
	// summarizing the rest.
	lowValueThreshold = 0.5
)

// CompactionOptions controls a compaction pass. Critical chunks are always
// preserved; there is no option to change that.
type CompactionOptions struct {
	Strategy          Strategy
	PreserveRecent    int     // most recent chunks kept verbatim; 0 means DefaultPreserveRecent
	TargetUtilization float64 // percent; 0 means strategy default
}

// Compactor reduces a Monitor's token usage without touching critical or
// recent chunks.
type Compactor struct {
	monitor    *Monitor
	summarizer Summarizer
	logger     *slog.Logger
}

// NewCompactor creates a Compactor over monitor. A nil summarizer uses
// ExtractiveSummarizer.
func NewCompactor(monitor *Monitor, summarizer Summarizer, logger *slog.Logger) *Compactor {
	if summarizer == nil {
		summarizer = ExtractiveSummarizer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{monitor: monitor, summarizer: summarizer, logger: logger}
}

// TriggerCompaction runs one pass of the requested strategy. Having nothing
// to act on is reported as Success=false, not as an error.
func (c *Compactor) TriggerCompaction(ctx context.Context, opts CompactionOptions) (CompactionResult, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategySummarize
	}
	switch opts.Strategy {
	case StrategySelective, StrategySummarize, StrategyAggressive:
	default:
		return CompactionResult{}, &CompactionError{Op: "Compact", Strategy: opts.Strategy, Err: ErrUnknownStrategy}
	}
	if opts.PreserveRecent <= 0 {
		opts.PreserveRecent = DefaultPreserveRecent
	}

	before := c.monitor.TokensUsed()
	snapshot := c.monitor.Chunks()
	criticalBefore := criticalIDs(snapshot)

	res := CompactionResult{
		Strategy:     opts.Strategy,
		TokensBefore: before,
	}

	eligible := eligibleChunks(snapshot, opts.PreserveRecent)
	switch opts.Strategy {
	case StrategySelective:
		target := opts.TargetUtilization
		if target <= 0 {
			target = defaultSelectiveTarget
		}
		c.removeUntil(eligible, target, &res, nil)
	case StrategySummarize:
		c.summarizeUntil(ctx, eligible, opts.TargetUtilization, &res)
	case StrategyAggressive:
		removed := c.removeUntil(eligible, opts.TargetUtilization, &res, func(ch Chunk) bool {
			return ch.RelevanceScore < lowValueThreshold
		})
		var rest []Chunk
		for _, ch := range eligible {
			if !removed[ch.ID] {
				rest = append(rest, ch)
			}
		}
		c.summarizeUntil(ctx, rest, 0, &res)
	}

	after := c.monitor.Chunks()
	res.TokensAfter = c.monitor.TokensUsed()
	res.TokensSaved = res.TokensBefore - res.TokensAfter
	res.PreservedCritical = sameIDs(criticalBefore, criticalIDs(after))
	res.Success = res.RemovedChunks+res.SummarizedChunks > 0

	if !res.PreservedCritical {
		// unreachable unless a critical chunk was removed concurrently
		c.logger.Error("critical chunk set changed during compaction", "strategy", opts.Strategy)
	}
	c.logger.Info("compaction finished",
		"strategy", res.Strategy,
		"removed", res.RemovedChunks,
		"summarized", res.SummarizedChunks,
		"saved", res.TokensSaved)
	return res, nil
}

// AutoCompact picks a strategy from the current health: critical runs
// aggressive, warning runs summarize, good does nothing. preserveRecent
// follows CompactionOptions.PreserveRecent.
func (c *Compactor) AutoCompact(ctx context.Context, driftScore float64, preserveRecent int) (CompactionResult, error) {
	h := c.monitor.GetHealth(driftScore)
	switch h.Health {
	case LevelCritical:
		return c.TriggerCompaction(ctx, CompactionOptions{Strategy: StrategyAggressive, PreserveRecent: preserveRecent})
	case LevelWarning:
		return c.TriggerCompaction(ctx, CompactionOptions{Strategy: StrategySummarize, PreserveRecent: preserveRecent})
	default:
		return CompactionResult{
			TokensBefore:      h.TokensUsed,
			TokensAfter:       h.TokensUsed,
			PreservedCritical: true,
		}, nil
	}
}

// removeUntil deletes candidates lowest relevance first while utilization
// is above target. keep filters candidates; nil accepts all.
func (c *Compactor) removeUntil(candidates []Chunk, target float64, res *CompactionResult, keep func(Chunk) bool) map[string]bool {
	removed := make(map[string]bool)
	for _, ch := range byRelevance(candidates) {
		if c.monitor.Utilization() <= target {
			break
		}
		if keep != nil && !keep(ch) {
			continue
		}
		if c.monitor.RemoveChunk(ch.ID) {
			removed[ch.ID] = true
			res.RemovedChunks++
		}
	}
	return removed
}

// summarizeUntil condenses candidates lowest relevance first. A positive
// target stops the walk once utilization reaches it. A summary that would
// not shrink the chunk is discarded.
func (c *Compactor) summarizeUntil(ctx context.Context, candidates []Chunk, target float64, res *CompactionResult) {
	for _, ch := range byRelevance(candidates) {
		if ch.Summarized {
			continue
		}
		if target > 0 && c.monitor.Utilization() <= target {
			break
		}
		if err := ctx.Err(); err != nil {
			c.logger.Warn("compaction interrupted", "error", err)
			return
		}

		summary, err := c.summarizer.Summarize(ctx, ch)
		if err != nil {
			c.logger.Warn("summarize chunk", "chunk", ch.ID, "error", err)
			continue
		}
		content := fmt.Sprintf("[summary of %s] %s", sourceLabel(ch), summary)
		tokens := budget.Estimate(content)
		if summary == "" || tokens >= ch.Tokens {
			continue
		}
		if c.monitor.replaceChunk(ch.ID, content, tokens) {
			res.SummarizedChunks++
			res.Summaries = append(res.Summaries, content)
		}
	}
}

func sourceLabel(ch Chunk) string {
	if ch.Source == "" {
		return ch.ID
	}
	return ch.Source
}

// eligibleChunks returns the non-critical chunks older than the most recent
// preserveRecent, in insertion order.
func eligibleChunks(chunks []Chunk, preserveRecent int) []Chunk {
	cut := len(chunks) - preserveRecent
	if cut <= 0 {
		return nil
	}
	var out []Chunk
	for _, ch := range chunks[:cut] {
		if !ch.IsCritical {
			out = append(out, ch)
		}
	}
	return out
}

func byRelevance(chunks []Chunk) []Chunk {
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore < sorted[j].RelevanceScore
	})
	return sorted
}

func criticalIDs(chunks []Chunk) map[string]bool {
	ids := make(map[string]bool)
	for _, ch := range chunks {
		if ch.IsCritical {
			ids[ch.ID] = true
		}
	}
	return ids
}

func sameIDs(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}
