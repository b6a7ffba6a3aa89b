package health

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownStrategy    = errors.New("unknown compaction strategy")
	ErrUnknownContextType = errors.New("unknown critical context type")
	ErrInvalidTokenLimit  = errors.New("token limit must be positive")
)

// CompactionError wraps a failure inside a compaction pass with the
// operation that produced it.
type CompactionError struct {
	Op       string
	Strategy Strategy
	Err      error
}

func (e *CompactionError) Error() string {
	msg := fmt.Sprintf("compaction %s failed", e.Op)
	if e.Strategy != "" {
		msg += fmt.Sprintf(" (strategy %s)", e.Strategy)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompactionError) Unwrap() error {
	return e.Err
}
