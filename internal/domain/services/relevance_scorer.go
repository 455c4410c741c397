// Package services provides domain services for the PromptVault context engine.
// These are pure functions of their inputs with no infrastructure dependencies.
package services

import (
	"math"
	"sort"
	"time"

	"promptvault-backend/internal/domain"
)

// ScoringConfig configures the relevance scoring weights and bands.
type ScoringConfig struct {
	SimilarityWeight float64       // Weight applied to semantic similarity
	RecencyDayScore  float64       // Bonus when last used within RecencyDayBand
	RecencyWeekScore float64       // Bonus when last used within RecencyWeekBand
	RecencyDayBand   time.Duration // Age threshold for the high recency bonus
	RecencyWeekBand  time.Duration // Age threshold for the low recency bonus
	UsageDivisor     float64       // usage_count / UsageDivisor, capped at UsageCap
	UsageCap         float64       // Diminishing-returns cap on the usage signal
	PriorityDivisor  float64       // priority / PriorityDivisor
	DiversityBonus   float64       // Bonus for the top candidate of an unrepresented type
}

// DefaultScoringConfig returns the balanced default weights.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		SimilarityWeight: 0.5,
		RecencyDayScore:  0.2,
		RecencyWeekScore: 0.1,
		RecencyDayBand:   24 * time.Hour,
		RecencyWeekBand:  7 * 24 * time.Hour,
		UsageDivisor:     100,
		UsageCap:         0.2,
		PriorityDivisor:  50,
		DiversityBonus:   0.1,
	}
}

// ScoredInput pairs a candidate fragment with its semantic similarity to the
// query, as reported by the similarity index.
type ScoredInput struct {
	Fragment   domain.Fragment
	Similarity float64
}

// RelevanceScorer ranks candidate fragments by a weighted blend of semantic
// similarity, recency, usage frequency, and user-declared priority.
type RelevanceScorer struct {
	config *ScoringConfig
}

// NewRelevanceScorer creates a new scorer.
func NewRelevanceScorer(config *ScoringConfig) *RelevanceScorer {
	if config == nil {
		config = DefaultScoringConfig()
	}
	return &RelevanceScorer{config: config}
}

// Score computes composite scores for all candidates and returns them sorted
// by composite score descending, ties broken by similarity descending.
// Identical inputs always produce identical ordering.
func (rs *RelevanceScorer) Score(inputs []ScoredInput, now time.Time) []domain.ScoredCandidate {
	scored := make([]domain.ScoredCandidate, 0, len(inputs))

	for _, in := range inputs {
		f := in.Fragment
		candidate := domain.ScoredCandidate{
			FragmentID:    f.ID,
			FragmentType:  f.Type,
			Name:          f.Name,
			TokenCount:    f.TokenCount,
			Similarity:    in.Similarity,
			RecencyScore:  rs.recencyScore(f.LastUsedAt, now),
			UsageScore:    rs.usageScore(f.UsageCount),
			PriorityScore: float64(f.Priority) / rs.config.PriorityDivisor,
		}
		candidate.CompositeScore = in.Similarity*rs.config.SimilarityWeight +
			candidate.RecencyScore + candidate.UsageScore + candidate.PriorityScore
		scored = append(scored, candidate)
	}

	rs.sortCandidates(scored)
	rs.applyDiversityBonus(scored)
	rs.sortCandidates(scored)

	return scored
}

// recencyScore is a step function of the time since last use.
func (rs *RelevanceScorer) recencyScore(lastUsedAt *time.Time, now time.Time) float64 {
	if lastUsedAt == nil {
		return 0
	}

	age := now.Sub(*lastUsedAt)
	switch {
	case age <= rs.config.RecencyDayBand:
		return rs.config.RecencyDayScore
	case age <= rs.config.RecencyWeekBand:
		return rs.config.RecencyWeekScore
	default:
		return 0
	}
}

// usageScore rewards frequently used fragments with diminishing returns.
func (rs *RelevanceScorer) usageScore(usageCount int) float64 {
	return math.Min(float64(usageCount)/rs.config.UsageDivisor, rs.config.UsageCap)
}

// applyDiversityBonus grants the bonus to the highest-ranked candidate of
// each fragment type not yet represented above it. Candidates must already
// be sorted by composite score.
func (rs *RelevanceScorer) applyDiversityBonus(scored []domain.ScoredCandidate) {
	if rs.config.DiversityBonus == 0 {
		return
	}

	seen := make(map[domain.FragmentType]bool)
	for i := range scored {
		if !seen[scored[i].FragmentType] {
			seen[scored[i].FragmentType] = true
			scored[i].DiversityBonus = rs.config.DiversityBonus
			scored[i].CompositeScore += rs.config.DiversityBonus
		}
	}
}

// sortCandidates orders by composite score descending, then similarity
// descending, then fragment ID so equal inputs always order identically.
func (rs *RelevanceScorer) sortCandidates(scored []domain.ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].CompositeScore != scored[j].CompositeScore {
			return scored[i].CompositeScore > scored[j].CompositeScore
		}
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].FragmentID < scored[j].FragmentID
	})
}
