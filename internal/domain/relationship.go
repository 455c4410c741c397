package domain

// RelationshipType classifies a directed edge between two fragments.
type RelationshipType string

const (
	RelationshipDependsOn RelationshipType = "depends_on"
	RelationshipExtends   RelationshipType = "extends"
	RelationshipConflicts RelationshipType = "conflicts"
	RelationshipUses      RelationshipType = "uses"
)

// Relationship is a directed, typed edge between two fragments.
// depends_on and extends imply the target should be present when the source
// is selected; conflicts is symmetric and forbids co-selection.
type Relationship struct {
	SourceID string            `json:"sourceId"`
	TargetID string            `json:"targetId"`
	Type     RelationshipType  `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RequiresTarget reports whether this edge type implies the target must
// accompany the source in a composition.
func (r Relationship) RequiresTarget() bool {
	return r.Type == RelationshipDependsOn || r.Type == RelationshipExtends
}
