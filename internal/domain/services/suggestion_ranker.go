package services

import (
	"sort"

	"promptvault-backend/internal/domain"
)

// SuggestionRanker merges suggestions from multiple prediction strategies
// into one ordered, deduplicated list.
type SuggestionRanker struct{}

// NewSuggestionRanker creates a new ranker.
func NewSuggestionRanker() *SuggestionRanker {
	return &SuggestionRanker{}
}

// Rank sorts suggestions by confidence descending, keeps the first
// occurrence of each fragment id, and truncates to limit. Sorting before
// deduplication guarantees the kept entry carries the highest confidence
// observed for that fragment.
func (sr *SuggestionRanker) Rank(suggestions []domain.Suggestion, limit int) []domain.Suggestion {
	ranked := make([]domain.Suggestion, len(suggestions))
	copy(ranked, suggestions)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].FragmentID < ranked[j].FragmentID
	})

	seen := make(map[string]bool, len(ranked))
	deduped := make([]domain.Suggestion, 0, len(ranked))
	for _, s := range ranked {
		if seen[s.FragmentID] {
			continue
		}
		seen[s.FragmentID] = true
		deduped = append(deduped, s)
		if limit > 0 && len(deduped) >= limit {
			break
		}
	}

	return deduped
}
