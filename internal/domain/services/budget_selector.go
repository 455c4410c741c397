package services

import (
	"promptvault-backend/internal/domain"
)

// SelectorConfig configures the budget-constrained greedy selection.
type SelectorConfig struct {
	OverflowTolerance float64 // Accept while tokens stay within budget * tolerance
	CutoffFraction    float64 // Stop early once tokens reach budget * fraction
	DefaultMaxItems   int     // Item cap applied when the caller passes none
}

// DefaultSelectorConfig returns the standard 10% overflow / 90% cutoff rules.
func DefaultSelectorConfig() *SelectorConfig {
	return &SelectorConfig{
		OverflowTolerance: 1.10,
		CutoffFraction:    0.90,
		DefaultMaxItems:   10,
	}
}

// BudgetSelector greedily picks top-scored candidates under a token budget.
// Given the same scored list and budget the selection is identical every call.
type BudgetSelector struct {
	config *SelectorConfig
}

// NewBudgetSelector creates a new selector.
func NewBudgetSelector(config *SelectorConfig) *BudgetSelector {
	if config == nil {
		config = DefaultSelectorConfig()
	}
	return &BudgetSelector{config: config}
}

// Select walks candidates in score order, accepting each that fits within
// the overflow-tolerant budget and the item cap, and stops early once the
// diminishing-value cutoff is reached. A candidate whose token count alone
// exceeds the tolerant budget is skipped, never force-included.
func (bs *BudgetSelector) Select(scored []domain.ScoredCandidate, tokenBudget, maxItems int) ([]domain.ScoredCandidate, int) {
	if maxItems <= 0 {
		maxItems = bs.config.DefaultMaxItems
	}

	hardLimit := float64(tokenBudget) * bs.config.OverflowTolerance
	cutoff := float64(tokenBudget) * bs.config.CutoffFraction

	selected := make([]domain.ScoredCandidate, 0, maxItems)
	totalTokens := 0

	for _, candidate := range scored {
		if len(selected) >= maxItems {
			break
		}
		if float64(totalTokens) >= cutoff {
			break
		}
		if float64(totalTokens+candidate.TokenCount) > hardLimit {
			continue
		}

		selected = append(selected, candidate)
		totalTokens += candidate.TokenCount
	}

	return selected, totalTokens
}
