package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvault-backend/internal/domain"
)

func candidate(id string, tokens int, score float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{
		FragmentID:     id,
		FragmentType:   domain.FragmentTypeSnippet,
		TokenCount:     tokens,
		CompositeScore: score,
	}
}

func TestBudgetSelectorSelect(t *testing.T) {
	selector := NewBudgetSelector(nil)

	t.Run("BudgetCoversTopTwoOfThree", func(t *testing.T) {
		scored := []domain.ScoredCandidate{
			candidate("a", 400, 0.9),
			candidate("b", 400, 0.75),
			candidate("c", 400, 0.5),
		}

		selected, total := selector.Select(scored, 800, 10)
		require.Len(t, selected, 2)
		assert.Equal(t, "a", selected[0].FragmentID)
		assert.Equal(t, "b", selected[1].FragmentID)
		assert.Equal(t, 800, total)
	})

	t.Run("TotalNeverExceedsOverflowTolerance", func(t *testing.T) {
		scored := []domain.ScoredCandidate{
			candidate("a", 500, 0.9),
			candidate("b", 500, 0.8),
			candidate("c", 120, 0.7),
		}

		_, total := selector.Select(scored, 1000, 10)
		assert.LessOrEqual(t, float64(total), 1000*1.10)
	})

	t.Run("OversizedCandidateSkippedNotForced", func(t *testing.T) {
		scored := []domain.ScoredCandidate{
			candidate("huge", 2000, 0.95),
			candidate("small", 100, 0.5),
		}

		selected, total := selector.Select(scored, 500, 10)
		require.Len(t, selected, 1)
		assert.Equal(t, "small", selected[0].FragmentID)
		assert.Equal(t, 100, total)
	})

	t.Run("StopsAtCutoffFraction", func(t *testing.T) {
		scored := []domain.ScoredCandidate{
			candidate("a", 950, 0.9),
			candidate("b", 50, 0.8),
		}

		// 950 of 1000 is past the 90% cutoff, so b is never considered.
		selected, total := selector.Select(scored, 1000, 10)
		require.Len(t, selected, 1)
		assert.Equal(t, 950, total)
	})

	t.Run("RespectsItemCap", func(t *testing.T) {
		scored := []domain.ScoredCandidate{
			candidate("a", 10, 0.9),
			candidate("b", 10, 0.8),
			candidate("c", 10, 0.7),
		}

		selected, _ := selector.Select(scored, 1000, 2)
		assert.Len(t, selected, 2)
	})

	t.Run("Deterministic", func(t *testing.T) {
		scored := []domain.ScoredCandidate{
			candidate("a", 300, 0.9),
			candidate("b", 300, 0.8),
			candidate("c", 300, 0.7),
		}

		first, firstTotal := selector.Select(scored, 700, 10)
		second, secondTotal := selector.Select(scored, 700, 10)
		assert.Equal(t, first, second)
		assert.Equal(t, firstTotal, secondTotal)
	})
}
