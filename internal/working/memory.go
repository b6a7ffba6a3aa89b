// Package working holds the tier-1 working memory of a session: the file
// the assistant is looking at right now and every file it has viewed.
package working

import (
	"sync"
	"time"
)

// ActiveFile is the file currently open in the assistant.
type ActiveFile struct {
	Path     string    `json:"path"`
	Content  string    `json:"content"`
	Language string    `json:"language,omitempty"`
	OpenedAt time.Time `json:"opened_at"`
}

// Context is a snapshot of working memory.
type Context struct {
	ActiveFile *ActiveFile `json:"active_file,omitempty"`
}

// Memory is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	active *ActiveFile
	viewed []string
	seen   map[string]struct{}
}

func New() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

// SetActiveFile replaces the active file and records it as viewed.
func (m *Memory) SetActiveFile(path, content, language string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = &ActiveFile{
		Path:     path,
		Content:  content,
		Language: language,
		OpenedAt: time.Now(),
	}
	m.markLocked(path)
}

func (m *Memory) ClearActiveFile() {
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
}

// MarkViewed records path once, keeping first-view order.
func (m *Memory) MarkViewed(path string) {
	m.mu.Lock()
	m.markLocked(path)
	m.mu.Unlock()
}

func (m *Memory) markLocked(path string) {
	if path == "" {
		return
	}
	if _, ok := m.seen[path]; ok {
		return
	}
	m.seen[path] = struct{}{}
	m.viewed = append(m.viewed, path)
}

func (m *Memory) GetContext() Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return Context{}
	}
	af := *m.active
	return Context{ActiveFile: &af}
}

func (m *Memory) GetFilesViewed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.viewed))
	copy(out, m.viewed)
	return out
}

// Reset forgets the active file and the viewed history.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.active = nil
	m.viewed = nil
	m.seen = make(map[string]struct{})
	m.mu.Unlock()
}
