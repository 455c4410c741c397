package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvault-backend/internal/domain"
)

func TestResolveDependencies(t *testing.T) {
	resolver := NewCompositionResolver()

	t.Run("ReportsOneHopDependencyWithoutExpandingSelection", func(t *testing.T) {
		edges := map[string][]domain.Relationship{
			"a": {{SourceID: "a", TargetID: "b", Type: domain.RelationshipDependsOn}},
		}
		live := map[string]bool{"b": true}

		reports := resolver.ResolveDependencies([]string{"a"}, edges, live)
		require.Len(t, reports, 1)
		assert.Equal(t, "a", reports[0].SourceID)
		assert.Equal(t, "b", reports[0].TargetID)
		assert.Equal(t, domain.RelationshipDependsOn, reports[0].Type)
	})

	t.Run("SatisfiedWithinSelectionOmitted", func(t *testing.T) {
		edges := map[string][]domain.Relationship{
			"a": {{SourceID: "a", TargetID: "b", Type: domain.RelationshipExtends}},
		}
		live := map[string]bool{"b": true}

		reports := resolver.ResolveDependencies([]string{"a", "b"}, edges, live)
		assert.Empty(t, reports)
	})

	t.Run("DanglingDependencyOmitted", func(t *testing.T) {
		edges := map[string][]domain.Relationship{
			"a": {{SourceID: "a", TargetID: "deleted", Type: domain.RelationshipDependsOn}},
		}

		reports := resolver.ResolveDependencies([]string{"a"}, edges, map[string]bool{})
		assert.Empty(t, reports)
	})

	t.Run("UsesEdgesIgnored", func(t *testing.T) {
		edges := map[string][]domain.Relationship{
			"a": {{SourceID: "a", TargetID: "b", Type: domain.RelationshipUses}},
		}
		live := map[string]bool{"b": true}

		reports := resolver.ResolveDependencies([]string{"a"}, edges, live)
		assert.Empty(t, reports)
	})
}

func TestFindConflicts(t *testing.T) {
	resolver := NewCompositionResolver()

	t.Run("ConflictingPairFlaggedOnce", func(t *testing.T) {
		edges := map[string][]domain.Relationship{
			"a": {{SourceID: "a", TargetID: "b", Type: domain.RelationshipConflicts}},
			"b": {{SourceID: "b", TargetID: "a", Type: domain.RelationshipConflicts}},
		}

		conflicts := resolver.FindConflicts([]string{"a", "b"}, edges)
		require.Len(t, conflicts, 1)
		assert.Equal(t, "fragments are marked as conflicting", conflicts[0].Reason)
	})

	t.Run("ReasonFromMetadata", func(t *testing.T) {
		edges := map[string][]domain.Relationship{
			"a": {{
				SourceID: "a",
				TargetID: "b",
				Type:     domain.RelationshipConflicts,
				Metadata: map[string]string{"reason": "contradictory tone guidance"},
			}},
		}

		conflicts := resolver.FindConflicts([]string{"a", "b"}, edges)
		require.Len(t, conflicts, 1)
		assert.Equal(t, "contradictory tone guidance", conflicts[0].Reason)
	})

	t.Run("ConflictOutsideSelectionIgnored", func(t *testing.T) {
		edges := map[string][]domain.Relationship{
			"a": {{SourceID: "a", TargetID: "outside", Type: domain.RelationshipConflicts}},
		}

		conflicts := resolver.FindConflicts([]string{"a"}, edges)
		assert.Empty(t, conflicts)
	})
}
