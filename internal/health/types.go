package health

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContextType classifies a critical context item.
type ContextType string

const (
	TypeDecision    ContextType = "decision"
	TypeRequirement ContextType = "requirement"
	TypeInstruction ContextType = "instruction"
	TypeCustom      ContextType = "custom"
)

// ParseContextType validates s. The empty string maps to TypeCustom.
func ParseContextType(s string) (ContextType, error) {
	switch ContextType(s) {
	case "":
		return TypeCustom, nil
	case TypeDecision, TypeRequirement, TypeInstruction, TypeCustom:
		return ContextType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownContextType, s)
	}
}

// CriticalContext is content that compaction must never remove or rewrite.
type CriticalContext struct {
	ID        string      `json:"id"`
	Type      ContextType `json:"type"`
	Content   string      `json:"content"`
	Reason    string      `json:"reason,omitempty"`
	Source    string      `json:"source,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NeverCompress is always true; there is no way to register a critical item
// that compaction may touch.
func (CriticalContext) NeverCompress() bool { return true }

func (c CriticalContext) MarshalJSON() ([]byte, error) {
	type plain CriticalContext
	return json.Marshal(struct {
		plain
		NeverCompress bool `json:"never_compress"`
	}{plain(c), true})
}

// Chunk is one unit of tracked session content.
type Chunk struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Tokens         int       `json:"tokens"`
	Source         string    `json:"source"`
	RelevanceScore float64   `json:"relevance_score"`
	IsCritical     bool      `json:"is_critical"`
	Summarized     bool      `json:"summarized"`
	AddedAt        time.Time `json:"added_at"`
}

// Level is the coarse health classification of a session.
type Level string

const (
	LevelGood     Level = "good"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// ContextHealth is a point-in-time snapshot of session memory health.
type ContextHealth struct {
	TokensUsed           int       `json:"tokens_used"`
	TokensLimit          int       `json:"tokens_limit"`
	UtilizationPercent   float64   `json:"utilization_percent"`
	Health               Level     `json:"health"`
	RelevanceScore       float64   `json:"relevance_score"`
	DriftScore           float64   `json:"drift_score"`
	CriticalContextCount int       `json:"critical_context_count"`
	DriftDetected        bool      `json:"drift_detected"`
	CompactionNeeded     bool      `json:"compaction_needed"`
	Suggestions          []string  `json:"suggestions"`
	Timestamp            time.Time `json:"timestamp"`
}

// Strategy selects how the compactor recovers budget.
type Strategy string

const (
	StrategySelective  Strategy = "selective"
	StrategySummarize  Strategy = "summarize"
	StrategyAggressive Strategy = "aggressive"
)

// CompactionResult reports what a compaction pass did.
type CompactionResult struct {
	Success           bool     `json:"success"`
	Strategy          Strategy `json:"strategy"`
	TokensBefore      int      `json:"tokens_before"`
	TokensAfter       int      `json:"tokens_after"`
	TokensSaved       int      `json:"tokens_saved"`
	PreservedCritical bool     `json:"preserved_critical"`
	SummarizedChunks  int      `json:"summarized_chunks"`
	RemovedChunks     int      `json:"removed_chunks"`
	Summaries         []string `json:"summaries,omitempty"`
}
