package engine

import (
	"context"

	"github.com/lazypower/memorylayer/internal/store"
	"github.com/lazypower/memorylayer/internal/working"
)

// WorkingMemory is tier 1: what the user has open right now.
type WorkingMemory interface {
	GetContext() working.Context
	GetFilesViewed() []string
}

// CodebaseIndex is tier 2: indexed files and recorded decisions.
type CodebaseIndex interface {
	Search(ctx context.Context, vec []float64, k int) ([]store.CodeHit, error)
	SearchDecisions(ctx context.Context, vec []float64, k int) ([]store.Decision, error)
	GetRecentDecisions(ctx context.Context, k int) ([]store.Decision, error)
}

// Archive is tier 3: long-term summaries of past sessions.
type Archive interface {
	SearchRelevant(ctx context.Context, query string, k int) ([]store.ArchiveEntry, error)
}

var (
	_ WorkingMemory = (*working.Memory)(nil)
	_ CodebaseIndex = (*store.DB)(nil)
	_ Archive       = (*store.DB)(nil)
)
