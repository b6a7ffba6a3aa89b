package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/memorylayer/internal/budget"
)

// DefaultTokenLimit is the session-wide ceiling. It is unrelated to the
// per-query assembly budget.
const DefaultTokenLimit = 100000

const (
	decayRateCritical = 0.98
	decayRateNormal   = 0.95
	minRelevance      = 0.1

	utilCritical  = 85.0
	utilWarning   = 70.0
	driftCritical = 0.5
	driftWarning  = 0.3

	historyWriteTimeout = 5 * time.Second
)

// HistoryStore records health snapshots.
type HistoryStore interface {
	RecordHealth(ctx context.Context, h ContextHealth) error
	HealthHistory(ctx context.Context, limit int) ([]ContextHealth, error)
}

// Monitor tracks the chunks that make up a session's memory, ages them on
// every insert and scores overall health. One mutex guards the chunk list
// and the running token total, so a decay pass is never observed half done.
type Monitor struct {
	mu         sync.Mutex
	chunks     []Chunk
	tokensUsed int
	tokenLimit int

	critical *CriticalManager
	history  HistoryStore
	logger   *slog.Logger
	now      func() time.Time

	pending sync.WaitGroup
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

func WithTokenLimit(n int) MonitorOption {
	return func(m *Monitor) {
		if n > 0 {
			m.tokenLimit = n
		}
	}
}

func WithHistoryStore(s HistoryStore) MonitorOption {
	return func(m *Monitor) { m.history = s }
}

func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor creates a Monitor that classifies chunks against critical.
// A nil manager gets an empty registry.
func NewMonitor(critical *CriticalManager, opts ...MonitorOption) *Monitor {
	if critical == nil {
		critical = NewCriticalManager()
	}
	m := &Monitor{
		tokenLimit: DefaultTokenLimit,
		critical:   critical,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// EstimateTokens uses the same estimator as the assembly budget.
func (m *Monitor) EstimateTokens(text string) int {
	return budget.Estimate(text)
}

// AddChunk appends content to the session and re-decays every chunk.
// A non-positive token count is replaced by the estimate. The returned chunk
// reflects the decay pass. Cost is O(N) per insert.
func (m *Monitor) AddChunk(content string, tokens int, source string) Chunk {
	if tokens <= 0 {
		tokens = budget.Estimate(content)
	}
	c := Chunk{
		ID:             uuid.NewString(),
		Content:        content,
		Tokens:         tokens,
		Source:         source,
		RelevanceScore: 1.0,
		IsCritical:     m.critical.IsCritical(content),
		AddedAt:        m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks = append(m.chunks, c)
	m.tokensUsed += tokens
	m.decayLocked()
	return m.chunks[len(m.chunks)-1]
}

// DecayRelevance ages every chunk once. Older chunks decay faster; critical
// chunks decay slower but are not exempt.
func (m *Monitor) DecayRelevance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decayLocked()
}

func (m *Monitor) decayLocked() {
	n := float64(len(m.chunks))
	for i := range m.chunks {
		c := &m.chunks[i]
		rate := decayRateNormal
		if c.IsCritical {
			rate = decayRateCritical
		}
		positionFactor := float64(i+1) / n
		score := c.RelevanceScore * rate * (0.5 + 0.5*positionFactor)
		c.RelevanceScore = min(1.0, max(minRelevance, score))
	}
}

// RemoveChunk drops the chunk with id and reports whether it existed.
func (m *Monitor) RemoveChunk(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id)
}

func (m *Monitor) removeLocked(id string) bool {
	for i, c := range m.chunks {
		if c.ID == id {
			m.tokensUsed -= c.Tokens
			m.chunks = append(m.chunks[:i], m.chunks[i+1:]...)
			return true
		}
	}
	return false
}

// replaceChunk swaps in summarized content. Critical chunks are refused.
func (m *Monitor) replaceChunk(id, content string, tokens int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.chunks {
		c := &m.chunks[i]
		if c.ID != id {
			continue
		}
		if c.IsCritical {
			return false
		}
		m.tokensUsed += tokens - c.Tokens
		c.Content = content
		c.Tokens = tokens
		c.Summarized = true
		return true
	}
	return false
}

// Chunks returns a copy of the tracked chunks in insertion order.
func (m *Monitor) Chunks() []Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Chunk, len(m.chunks))
	copy(out, m.chunks)
	return out
}

func (m *Monitor) TokensUsed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokensUsed
}

func (m *Monitor) TokenLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenLimit
}

// SetTokenLimit changes the session ceiling at runtime.
func (m *Monitor) SetTokenLimit(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTokenLimit, n)
	}
	m.mu.Lock()
	m.tokenLimit = n
	m.mu.Unlock()
	return nil
}

// Utilization returns tokensUsed as a percentage of the token limit.
func (m *Monitor) Utilization() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.utilizationLocked()
}

func (m *Monitor) utilizationLocked() float64 {
	return 100 * float64(m.tokensUsed) / float64(m.tokenLimit)
}

// Reset clears all chunks. Critical registrations are kept.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.chunks = nil
	m.tokensUsed = 0
	m.mu.Unlock()
}

// GetHealth scores the session. driftScore comes from the caller. The
// snapshot is also appended to the history log in the background.
func (m *Monitor) GetHealth(driftScore float64) ContextHealth {
	m.mu.Lock()
	util := m.utilizationLocked()
	relevance := 1.0
	if len(m.chunks) > 0 {
		var sum float64
		for _, c := range m.chunks {
			sum += c.RelevanceScore
		}
		relevance = sum / float64(len(m.chunks))
	}
	h := ContextHealth{
		TokensUsed:         m.tokensUsed,
		TokensLimit:        m.tokenLimit,
		UtilizationPercent: util,
		RelevanceScore:     relevance,
		DriftScore:         driftScore,
		Timestamp:          m.now(),
	}
	m.mu.Unlock()

	h.CriticalContextCount = m.critical.GetCriticalCount()
	h.Health = classify(util, driftScore)
	h.CompactionNeeded = h.Health != LevelGood
	h.DriftDetected = driftScore >= driftWarning
	h.Suggestions = suggestions(h)

	m.recordAsync(h)
	return h
}

func classify(util, drift float64) Level {
	switch {
	case util >= utilCritical || drift >= driftCritical:
		return LevelCritical
	case util >= utilWarning || drift >= driftWarning:
		return LevelWarning
	default:
		return LevelGood
	}
}

func suggestions(h ContextHealth) []string {
	var out []string
	if h.Health == LevelGood {
		out = append(out, "Context health is good; no action needed")
	}
	switch {
	case h.UtilizationPercent >= utilCritical:
		out = append(out,
			"Context utilization is critical: compaction strongly recommended",
			"Use the aggressive compaction strategy to recover budget")
	case h.UtilizationPercent >= utilWarning:
		out = append(out,
			"Context utilization is high: consider compaction",
			"Use the summarize compaction strategy to condense older content")
	}
	switch {
	case h.DriftScore >= driftCritical:
		out = append(out,
			"Significant drift from the original goal detected",
			"Review critical context to re-anchor the session")
	case h.DriftScore >= driftWarning:
		out = append(out, "Some drift detected: consider marking key requirements as critical")
	}
	if h.CriticalContextCount == 0 {
		out = append(out, "No critical context marked: mark key decisions and requirements to protect them from compaction")
	}
	return out
}

func (m *Monitor) recordAsync(h ContextHealth) {
	if m.history == nil {
		return
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := m.history.RecordHealth(ctx, h); err != nil {
			m.logger.Debug("record health snapshot", "error", err)
		}
	}()
}

// Flush waits for in-flight history writes.
func (m *Monitor) Flush() {
	m.pending.Wait()
}

// GetHealthHistory returns up to limit snapshots, newest first. Storage
// failures yield an empty slice.
func (m *Monitor) GetHealthHistory(ctx context.Context, limit int) []ContextHealth {
	if m.history == nil {
		return []ContextHealth{}
	}
	if limit <= 0 {
		limit = 10
	}
	hist, err := m.history.HealthHistory(ctx, limit)
	if err != nil {
		m.logger.Debug("load health history", "error", err)
		return []ContextHealth{}
	}
	if hist == nil {
		return []ContextHealth{}
	}
	return hist
}
