package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lazypower/memorylayer/internal/health"
	"github.com/lazypower/memorylayer/internal/metrics"
	"github.com/lazypower/memorylayer/internal/store"
	"github.com/lazypower/memorylayer/internal/working"
)

const (
	// chunks considered "recent" when scoring drift
	driftWindow = 10

	// characters of a file kept as its searchable preview
	previewChars = 2000

	// health snapshots kept by the maintenance job
	historyKeep = 1000
)

// Options tunes an Engine. Zero values use package defaults.
type Options struct {
	TokenLimit     int
	MaxTokens      int
	PreserveRecent int
	Summarizer     health.Summarizer
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Engine owns one project session: working memory, the chunk monitor,
// critical context, compaction and drift, backed by the store.
type Engine struct {
	DB        *store.DB
	Working   *working.Memory
	Critical  *health.CriticalManager
	Monitor   *health.Monitor
	Compactor *health.Compactor
	Drift     *health.DriftDetector

	metrics        *metrics.Metrics
	logger         *slog.Logger
	maxTokens      int
	preserveRecent int

	mu        sync.RWMutex
	embedder  Embedder
	assembler *Assembler
	sessionID string

	cronMu sync.Mutex
	cron   *cron.Cron
}

// New wires an Engine over db and loads persisted critical context.
func New(ctx context.Context, db *store.DB, emb Embedder, opts Options) (*Engine, error) {
	if emb == nil {
		return nil, fmt.Errorf("engine: embedder required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	critical := health.NewCriticalManager(
		health.WithCriticalStore(db),
		health.WithCriticalLogger(logger),
	)
	if err := critical.Load(ctx); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	monOpts := []health.MonitorOption{
		health.WithHistoryStore(db),
		health.WithMonitorLogger(logger),
	}
	if opts.TokenLimit > 0 {
		monOpts = append(monOpts, health.WithTokenLimit(opts.TokenLimit))
	}
	monitor := health.NewMonitor(critical, monOpts...)

	e := &Engine{
		DB:             db,
		Working:        working.New(),
		Critical:       critical,
		Monitor:        monitor,
		Compactor:      health.NewCompactor(monitor, opts.Summarizer, logger),
		Drift:          health.NewDriftDetector(),
		metrics:        opts.Metrics,
		logger:         logger,
		maxTokens:      opts.MaxTokens,
		preserveRecent: opts.PreserveRecent,
	}
	if e.maxTokens <= 0 {
		e.maxTokens = DefaultMaxTokens
	}
	e.SetEmbedder(emb)
	return e, nil
}

// SetEmbedder swaps the embedding provider, e.g. after a TF-IDF vocabulary
// is refitted.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embedder = emb
	e.assembler = NewAssembler(e.Working, e.DB, e.DB, emb)
}

func (e *Engine) Embedder() Embedder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.embedder
}

// Assemble builds a context document for query. The result is also tracked
// as a session chunk so it counts toward health.
func (e *Engine) Assemble(ctx context.Context, query string, opts AssembleOptions) (*AssembledContext, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = e.maxTokens
	}
	e.mu.RLock()
	a := e.assembler
	e.mu.RUnlock()

	start := time.Now()
	out, err := a.Assemble(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveAssembly(out.TokenCount, time.Since(start))

	if out.Context != "" {
		e.Monitor.AddChunk(out.Context, out.TokenCount, "assembler")
	}
	if e.Drift.Baseline() == "" {
		e.Drift.SetBaseline(query)
	}
	e.logger.Debug("context assembled", "tokens", out.TokenCount, "sources", len(out.Sources))
	return out, nil
}

// DriftScore scores recent chunks against the session goal and the
// requirement and instruction critical items.
func (e *Engine) DriftScore() float64 {
	var goals []string
	for _, typ := range []health.ContextType{health.TypeRequirement, health.TypeInstruction} {
		for _, c := range e.Critical.GetCriticalContext(typ) {
			goals = append(goals, c.Content)
		}
	}

	chunks := e.Monitor.Chunks()
	if len(chunks) > driftWindow {
		chunks = chunks[len(chunks)-driftWindow:]
	}
	recent := make([]string, len(chunks))
	for i, c := range chunks {
		recent[i] = c.Content
	}
	return e.Drift.Score(goals, recent)
}

// GetHealth computes health with the engine's own drift score.
func (e *Engine) GetHealth() health.ContextHealth {
	return e.GetHealthWithDrift(e.DriftScore())
}

// GetHealthWithDrift computes health with a caller-supplied drift score.
func (e *Engine) GetHealthWithDrift(drift float64) health.ContextHealth {
	h := e.Monitor.GetHealth(drift)
	e.metrics.ObserveHealth(h)
	return h
}

func (e *Engine) HealthHistory(ctx context.Context, limit int) []health.ContextHealth {
	if limit <= 0 {
		limit = 50
	}
	return e.Monitor.GetHealthHistory(ctx, limit)
}

func (e *Engine) MarkCritical(ctx context.Context, content string, typ health.ContextType, reason, source string) health.CriticalContext {
	return e.Critical.MarkCritical(ctx, content, typ, reason, source)
}

func (e *Engine) GetCriticalContext(typ health.ContextType) []health.CriticalContext {
	return e.Critical.GetCriticalContext(typ)
}

func (e *Engine) RemoveCritical(ctx context.Context, id string) bool {
	return e.Critical.RemoveCritical(ctx, id)
}

// AddChunk tracks content in the session.
func (e *Engine) AddChunk(ctx context.Context, content string, tokens int, source string) health.Chunk {
	ch := e.Monitor.AddChunk(content, tokens, source)
	if id := e.SessionID(); id != "" {
		if err := e.DB.IncrementChunkCount(ctx, id); err != nil {
			e.logger.Warn("count chunk", "session", id, "error", err)
		}
	}
	return ch
}

func (e *Engine) RemoveChunk(id string) bool {
	return e.Monitor.RemoveChunk(id)
}

// TriggerCompaction runs one compaction pass and archives its summaries.
func (e *Engine) TriggerCompaction(ctx context.Context, opts health.CompactionOptions) (health.CompactionResult, error) {
	if opts.PreserveRecent <= 0 {
		opts.PreserveRecent = e.preserveRecent
	}
	res, err := e.Compactor.TriggerCompaction(ctx, opts)
	if err != nil {
		return res, err
	}
	e.afterCompaction(ctx, res)
	return res, nil
}

// AutoCompact picks a strategy from the current health and drift.
func (e *Engine) AutoCompact(ctx context.Context) (health.CompactionResult, error) {
	res, err := e.Compactor.AutoCompact(ctx, e.DriftScore(), e.preserveRecent)
	if err != nil {
		return res, err
	}
	e.afterCompaction(ctx, res)
	return res, nil
}

func (e *Engine) afterCompaction(ctx context.Context, res health.CompactionResult) {
	e.metrics.ObserveCompaction(res)
	if !res.Success {
		return
	}
	sessionID := e.SessionID()
	for _, s := range res.Summaries {
		if _, err := e.DB.AddArchiveSummary(ctx, s, "compaction:"+string(res.Strategy), sessionID); err != nil {
			e.logger.Warn("archive compaction summary", "error", err)
		}
	}
	if sessionID != "" {
		if err := e.DB.IncrementCompactionCount(ctx, sessionID); err != nil {
			e.logger.Warn("count compaction", "session", sessionID, "error", err)
		}
	}
}

// IndexFile stores path in the codebase tier with a fresh embedding.
func (e *Engine) IndexFile(ctx context.Context, path, content, language string, modified time.Time) error {
	preview := content
	if len(preview) > previewChars {
		preview = preview[:previewChars]
		if i := strings.LastIndexByte(preview, '\n'); i > previewChars/2 {
			preview = preview[:i]
		}
	}
	lines := strings.Count(preview, "\n") + 1

	emb := e.Embedder()
	vec, err := emb.Embed(ctx, path+"\n"+preview)
	if err != nil {
		return fmt.Errorf("embed %s: %w", path, err)
	}
	return e.DB.UpsertFile(ctx, store.IndexedFile{
		Path:         path,
		Preview:      preview,
		Language:     language,
		LineStart:    1,
		LineEnd:      lines,
		LastModified: modified,
		Embedding:    vec,
		Model:        emb.Model(),
	})
}

// RecordDecision stores d with an embedding. An embedding failure stores
// the decision without one; EmbedMissing picks it up later.
func (e *Engine) RecordDecision(ctx context.Context, d store.Decision) (store.Decision, error) {
	if strings.TrimSpace(d.Title) == "" {
		return store.Decision{}, fmt.Errorf("decision title required")
	}
	emb := e.Embedder()
	vec, err := emb.Embed(ctx, d.Text())
	model := emb.Model()
	if err != nil {
		e.logger.Warn("embed decision", "title", d.Title, "error", err)
		vec, model = nil, ""
	}
	return e.DB.AddDecision(ctx, d, vec, model)
}

func (e *Engine) ArchiveSummary(ctx context.Context, summary, source string) (store.ArchiveEntry, error) {
	if strings.TrimSpace(summary) == "" {
		return store.ArchiveEntry{}, fmt.Errorf("archive summary required")
	}
	return e.DB.AddArchiveSummary(ctx, summary, source, e.SessionID())
}

// EmbedMissing embeds files and decisions without a vector from the current
// model. Failures are logged and skipped.
func (e *Engine) EmbedMissing(ctx context.Context) (int, error) {
	emb := e.Embedder()
	model := emb.Model()

	files, err := e.DB.FilesMissingVectors(ctx, model)
	if err != nil {
		return 0, err
	}
	decisions, err := e.DB.DecisionsMissingVectors(ctx, model)
	if err != nil {
		return 0, err
	}

	embedded := 0
	for _, f := range files {
		vec, err := emb.Embed(ctx, f.Path+"\n"+f.Preview)
		if err != nil {
			e.logger.Warn("embed missing file", "path", f.Path, "error", err)
			continue
		}
		if err := e.DB.SaveFileVector(ctx, f.Path, vec, model); err != nil {
			e.logger.Warn("embed missing file", "path", f.Path, "error", err)
			continue
		}
		embedded++
	}
	for _, d := range decisions {
		vec, err := emb.Embed(ctx, d.Text())
		if err != nil {
			e.logger.Warn("embed missing decision", "id", d.ID, "error", err)
			continue
		}
		if err := e.DB.SaveDecisionVector(ctx, d.ID, vec, model); err != nil {
			e.logger.Warn("embed missing decision", "id", d.ID, "error", err)
			continue
		}
		embedded++
	}
	return embedded, nil
}

// InitSession starts or resumes sessionID. A new session starts with empty
// working memory and chunk state; a resumed one keeps them.
func (e *Engine) InitSession(ctx context.Context, sessionID, project string) (*store.Session, bool, error) {
	sess, created, err := e.DB.InitSession(ctx, sessionID, project)
	if err != nil {
		return nil, false, err
	}

	e.mu.Lock()
	switched := e.sessionID != sessionID
	e.sessionID = sessionID
	e.mu.Unlock()

	if created || switched {
		e.Monitor.Reset()
		e.Working.Reset()
		e.Drift.SetBaseline(sess.Goal)
	}
	return sess, created, nil
}

// SetGoal records the session goal and uses it as the drift baseline when
// none is set yet.
func (e *Engine) SetGoal(ctx context.Context, goal string) error {
	goal = strings.TrimSpace(goal)
	if goal == "" || e.Drift.Baseline() != "" {
		return nil
	}
	e.Drift.SetBaseline(goal)
	if id := e.SessionID(); id != "" {
		return e.DB.SetSessionGoal(ctx, id, goal)
	}
	return nil
}

// EndSession marks the current session ended and waits for pending history
// writes.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	e.Monitor.Flush()
	if err := e.DB.EndSession(ctx, sessionID); err != nil {
		return err
	}
	e.mu.Lock()
	if e.sessionID == sessionID {
		e.sessionID = ""
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) SessionID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessionID
}

// StartMaintenance schedules auto-compaction and history pruning. An empty
// schedule disables it.
func (e *Engine) StartMaintenance(schedule string) error {
	if schedule == "" {
		return nil
	}
	e.cronMu.Lock()
	defer e.cronMu.Unlock()
	if e.cron != nil {
		return fmt.Errorf("maintenance already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, e.maintain); err != nil {
		return fmt.Errorf("invalid compaction schedule %q: %w", schedule, err)
	}
	c.Start()
	e.cron = c
	e.logger.Info("maintenance scheduled", "schedule", schedule)
	return nil
}

func (e *Engine) maintain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := e.AutoCompact(ctx)
	if err != nil {
		e.logger.Error("scheduled compaction", "error", err)
	} else if res.Success {
		e.logger.Info("scheduled compaction", "strategy", res.Strategy, "saved", res.TokensSaved)
	}
	if n, err := e.DB.PruneHealthHistory(ctx, historyKeep); err != nil {
		e.logger.Warn("prune health history", "error", err)
	} else if n > 0 {
		e.logger.Debug("pruned health history", "rows", n)
	}
}

// Stop waits for a running maintenance job and pending history writes.
func (e *Engine) Stop() {
	e.cronMu.Lock()
	if e.cron != nil {
		<-e.cron.Stop().Done()
		e.cron = nil
	}
	e.cronMu.Unlock()
	e.Monitor.Flush()
}
