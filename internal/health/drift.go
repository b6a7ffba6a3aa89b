package health

import (
	"strings"
	"sync"
	"unicode"
)

// DriftDetector estimates how far recent session content has wandered from
// the session's goal. The score is the fraction of goal terms that no
// longer appear in recent content.
type DriftDetector struct {
	mu       sync.RWMutex
	baseline string
}

func NewDriftDetector() *DriftDetector {
	return &DriftDetector{}
}

// SetBaseline records the goal text. An empty string clears it.
func (d *DriftDetector) SetBaseline(text string) {
	d.mu.Lock()
	d.baseline = strings.TrimSpace(text)
	d.mu.Unlock()
}

// Baseline returns the current goal text.
func (d *DriftDetector) Baseline() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.baseline
}

// Score returns drift in [0,1]. goals are extra anchor texts (typically
// requirement-type critical items) merged with the baseline. With no anchor
// or no recent content the score is 0.
func (d *DriftDetector) Score(goals, recent []string) float64 {
	anchor := terms(d.Baseline())
	for _, g := range goals {
		for t := range terms(g) {
			anchor[t] = struct{}{}
		}
	}
	if len(anchor) == 0 {
		return 0
	}

	seen := make(map[string]struct{})
	for _, r := range recent {
		for t := range terms(r) {
			seen[t] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return 0
	}

	covered := 0
	for t := range anchor {
		if _, ok := seen[t]; ok {
			covered++
		}
	}
	return 1 - float64(covered)/float64(len(anchor))
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "are": {}, "was": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "can": {}, "have": {}, "has": {}, "into": {}, "use": {},
	"should": {}, "would": {}, "will": {}, "our": {}, "its": {}, "then": {},
}

func terms(text string) map[string]struct{} {
	out := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}
