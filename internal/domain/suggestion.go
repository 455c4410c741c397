package domain

// SuggestionSource labels which strategy produced a suggestion.
type SuggestionSource string

const (
	SourceTime       SuggestionSource = "time"
	SourceActivity   SuggestionSource = "activity"
	SourceSequential SuggestionSource = "sequential"
	SourceFrequency  SuggestionSource = "frequency"
	SourceSimilarity SuggestionSource = "similarity"
)

// Suggestion is one predicted or related fragment with a confidence score,
// a human-readable reason, and the strategy that produced it.
type Suggestion struct {
	FragmentID string           `json:"fragmentId"`
	Name       string           `json:"name,omitempty"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason"`
	Source     SuggestionSource `json:"source"`
}
