package engine

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/lazypower/memorylayer/internal/store"
)

const (
	sameDirBoost  = 1.5
	viewedBoost   = 1.3
	recencyBoost  = 0.3
	recencyWindow = 24 * time.Hour
)

// RankedHit is a code hit with its post-ranking score.
type RankedHit struct {
	store.CodeHit
	Score float64
}

// Ranker reorders semantic hits using session signals.
type Ranker struct {
	now func() time.Time
}

func NewRanker() *Ranker {
	return &Ranker{now: time.Now}
}

// Rank scores each hit and returns them best first. Ties keep input order.
//
//	score = similarity
//	      × 1.5 when the file shares a directory with currentFile
//	      × (1 + 0.3·(24−h)/24) when modified h hours ago, 0 ≤ h < 24
//	      × 1.3 when the file was already viewed this session
func (r *Ranker) Rank(hits []store.CodeHit, currentFile string, viewed []string) []RankedHit {
	seen := make(map[string]struct{}, len(viewed))
	for _, v := range viewed {
		seen[v] = struct{}{}
	}
	curDir := ""
	if currentFile != "" {
		curDir = filepath.Dir(currentFile)
	}
	now := r.now()

	out := make([]RankedHit, len(hits))
	for i, h := range hits {
		score := h.Similarity
		if curDir != "" && filepath.Dir(h.File) == curDir {
			score *= sameDirBoost
		}
		if !h.LastModified.IsZero() {
			age := now.Sub(h.LastModified)
			if age >= 0 && age < recencyWindow {
				hours := age.Hours()
				score *= 1 + recencyBoost*(24-hours)/24
			}
		}
		if _, ok := seen[h.File]; ok {
			score *= viewedBoost
		}
		out[i] = RankedHit{CodeHit: h, Score: score}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
