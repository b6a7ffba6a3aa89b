// Package budget tracks token spend against a fixed ceiling while a context
// document is being assembled.
package budget

import (
	"errors"
	"fmt"
)

// ErrInvalidMax is returned by New for a non-positive ceiling.
var ErrInvalidMax = errors.New("budget: max tokens must be positive")

// Estimate approximates the token count of text as ceil(len/4).
// Every component that counts tokens goes through this function.
func Estimate(text string) int {
	return (len(text) + 3) / 4
}

// Allocation records one piece of content charged against a Budget.
type Allocation struct {
	Label  string `json:"label"`
	Tokens int    `json:"tokens"`
}

// Budget is a single-request token ledger. It is not safe for concurrent use.
type Budget struct {
	max         int
	used        int
	allocations []Allocation
}

// New creates a Budget with the given ceiling.
func New(maxTokens int) (*Budget, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMax, maxTokens)
	}
	return &Budget{max: maxTokens}, nil
}

// CanFit reports whether text would fit in what is left of the budget.
func (b *Budget) CanFit(text string) bool {
	return b.used+Estimate(text) <= b.max
}

// Allocate charges text to the budget and returns its estimated cost.
// It does not check the ceiling; call CanFit first unless overflow is intended.
func (b *Budget) Allocate(text, label string) int {
	tokens := Estimate(text)
	b.used += tokens
	b.allocations = append(b.allocations, Allocation{Label: label, Tokens: tokens})
	return tokens
}

// Remaining returns the unspent tokens, never negative.
func (b *Budget) Remaining() int {
	return max(0, b.max-b.used)
}

func (b *Budget) Used() int { return b.used }
func (b *Budget) Max() int  { return b.max }

// Allocations returns a copy of the allocation log in charge order.
func (b *Budget) Allocations() []Allocation {
	out := make([]Allocation, len(b.allocations))
	copy(out, b.allocations)
	return out
}
