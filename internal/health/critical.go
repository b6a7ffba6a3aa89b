package health

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CriticalStore persists critical context across restarts.
type CriticalStore interface {
	SaveCritical(ctx context.Context, item CriticalContext) error
	DeleteCritical(ctx context.Context, id string) error
	ListCritical(ctx context.Context) ([]CriticalContext, error)
}

// CriticalManager is the registry of content that compaction must preserve.
// Items are kept in creation order.
type CriticalManager struct {
	mu     sync.RWMutex
	items  []CriticalContext
	store  CriticalStore
	logger *slog.Logger
	now    func() time.Time
}

// CriticalOption configures a CriticalManager.
type CriticalOption func(*CriticalManager)

// WithCriticalStore writes every change through to s.
func WithCriticalStore(s CriticalStore) CriticalOption {
	return func(m *CriticalManager) { m.store = s }
}

// WithCriticalLogger sets the logger used for persistence failures.
func WithCriticalLogger(l *slog.Logger) CriticalOption {
	return func(m *CriticalManager) { m.logger = l }
}

func NewCriticalManager(opts ...CriticalOption) *CriticalManager {
	m := &CriticalManager{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Load replaces the in-memory registry with the persisted items.
func (m *CriticalManager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	items, err := m.store.ListCritical(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items = items
	m.mu.Unlock()
	return nil
}

// MarkCritical registers content as critical. It always succeeds; a
// persistence failure is logged and the item stays registered in memory.
func (m *CriticalManager) MarkCritical(ctx context.Context, content string, typ ContextType, reason, source string) CriticalContext {
	if typ == "" {
		typ = TypeCustom
	}
	item := CriticalContext{
		ID:        uuid.NewString(),
		Type:      typ,
		Content:   content,
		Reason:    reason,
		Source:    source,
		CreatedAt: m.now(),
	}

	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveCritical(ctx, item); err != nil {
			m.logger.Warn("persist critical context", "id", item.ID, "error", err)
		}
	}
	return item
}

// GetCriticalContext returns registered items in creation order, optionally
// filtered by type. An empty type returns everything.
func (m *CriticalManager) GetCriticalContext(typ ContextType) []CriticalContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CriticalContext, 0, len(m.items))
	for _, it := range m.items {
		if typ == "" || it.Type == typ {
			out = append(out, it)
		}
	}
	return out
}

// RemoveCritical unregisters the item with id and reports whether it existed.
func (m *CriticalManager) RemoveCritical(ctx context.Context, id string) bool {
	m.mu.Lock()
	idx := -1
	for i, it := range m.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items[:idx], m.items[idx+1:]...)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteCritical(ctx, id); err != nil {
			m.logger.Warn("delete persisted critical context", "id", id, "error", err)
		}
	}
	return true
}

// IsCritical reports whether content matches a registered item: equal after
// trimming, or content contains the item. A fragment of an item does not
// match. Matching is case-sensitive and empty strings never match.
func (m *CriticalManager) IsCritical(content string) bool {
	content = strings.TrimSpace(content)
	if content == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, it := range m.items {
		c := strings.TrimSpace(it.Content)
		if c == "" {
			continue
		}
		if c == content || strings.Contains(content, c) {
			return true
		}
	}
	return false
}

func (m *CriticalManager) GetCriticalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
