package domain

// ScoredCandidate carries the per-signal scores computed for one candidate
// fragment during a ranking pass. It is constructed per query and never
// persisted.
type ScoredCandidate struct {
	FragmentID     string       `json:"fragmentId"`
	FragmentType   FragmentType `json:"fragmentType"`
	Name           string       `json:"name"`
	TokenCount     int          `json:"tokenCount"`
	Similarity     float64      `json:"similarity"`
	RecencyScore   float64      `json:"recencyScore"`
	UsageScore     float64      `json:"usageScore"`
	PriorityScore  float64      `json:"priorityScore"`
	DiversityBonus float64      `json:"diversityBonus"`
	CompositeScore float64      `json:"compositeScore"`
}

// DependencyReport names a one-hop dependency of a selected fragment.
// It is advisory: reported dependencies are never added to the selection.
type DependencyReport struct {
	SourceID string           `json:"sourceId"`
	TargetID string           `json:"targetId"`
	Type     RelationshipType `json:"type"`
}

// ConflictReport flags a conflicting pair within a selection. Resolution is
// caller policy; the engine only reports.
type ConflictReport struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	Reason   string `json:"reason"`
}

// Composition is the result of selecting a budget-constrained subset of
// fragments for a goal. Immutable once returned.
type Composition struct {
	GoalText            string             `json:"goalText,omitempty"`
	SelectedFragmentIDs []string           `json:"selectedFragmentIds"`
	Candidates          []ScoredCandidate  `json:"candidates,omitempty"`
	TotalTokens         int                `json:"totalTokens"`
	Dependencies        []DependencyReport `json:"dependencies"`
	Conflicts           []ConflictReport   `json:"conflicts"`
	QualityScore        float64            `json:"qualityScore"`
	Reason              string             `json:"reason,omitempty"` // set when the composition is empty
}
